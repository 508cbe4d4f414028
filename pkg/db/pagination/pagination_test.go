package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "123"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "123", cursor.ID)

	_, err = DecodeCursor("!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err = DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestTrim(t *testing.T) {
	rows := []int{9, 8, 7}
	page, info := Trim(rows, 2, func(v int) string { return strconv.Itoa(v) })
	assert.Equal(t, []int{9, 8}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "8", cursor.ID)

	page, info = Trim(rows, 5, func(v int) string { return strconv.Itoa(v) })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}
