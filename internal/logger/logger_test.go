package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	level, err = parseLevel(" debug ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestIdentitySkipsEmptyValues(t *testing.T) {
	fields := identity(Options{Service: "royalti", Environment: "staging"})
	assert.Equal(t, []zap.Field{
		zap.String("service", "royalti"),
		zap.String("env", "staging"),
	}, fields)
}

func TestNewAppliesLevel(t *testing.T) {
	log, err := New(Options{Level: "warn", Service: "royalti"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New(Options{Level: "nope"})
	assert.Error(t, err)
}
