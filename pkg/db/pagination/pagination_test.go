package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Page: 3, Limit: MaxLimit}, Page{Page: 3, Limit: 5000}.Normalize())
	assert.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(Page{Page: 2, Limit: 10}, 25)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasMore)

	last := BuildPageInfo(Page{Page: 3, Limit: 10}, 25)
	assert.False(t, last.HasMore)
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
}

func TestBuildCursorInfoTrims(t *testing.T) {
	a, b, c := 1, 2, 3
	data, info := BuildCursorInfo([]*int{&a, &b, &c}, 2, func(v *int) string { return "x" })
	assert.Len(t, data, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "x", info.NextPageToken)
}

func TestSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", SortOrder(" asc"))
	assert.Equal(t, "DESC", SortOrder("sideways"))
}
