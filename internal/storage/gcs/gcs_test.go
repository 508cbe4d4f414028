package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("royalty.csv"))
	assert.Equal(t, "text/csv", contentType("noext"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentType("Royalty.XLSX"))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	assert.Error(t, err)
}
