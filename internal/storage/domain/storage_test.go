package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	key := ObjectKey(now, "C:\\reports\\Streaming Royalties Jan.CSV")
	assert.True(t, strings.HasPrefix(key, "2024/01/"), key)
	assert.True(t, strings.HasSuffix(key, "-streaming-royalties-jan.csv"), key)

	other := ObjectKey(now, "Streaming Royalties Jan.CSV")
	assert.NotEqual(t, key, other)

	assert.True(t, strings.HasSuffix(ObjectKey(now, "???.xlsx"), "-report.xlsx"))
}

func TestUnavailableWrapsBoth(t *testing.T) {
	cause := errors.New("disk full")
	err := Unavailable("store", cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Unavailable("store", nil))
}
