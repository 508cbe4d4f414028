package logger

import (
	"github.com/smallbiznis/royalti/internal/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFromConfig creates the bootstrap logger from Config and replaces globals.
func NewFromConfig(appCfg config.Config) (*zap.Logger, error) {
	return New(Options{
		Level:       appCfg.LogLevel,
		Service:     appCfg.AppName,
		Version:     appCfg.AppVersion,
		Environment: appCfg.Environment,
		Console:     appCfg.Environment == "development",
	})
}

// WithFxEvents routes fx lifecycle events through the bootstrap logger at
// debug level so startup stays quiet unless LOG_LEVEL=debug.
func WithFxEvents(log *zap.Logger) fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		l := &fxevent.ZapLogger{Logger: log.Named("fx")}
		l.UseLogLevel(zapcore.DebugLevel)
		return l
	})
}
