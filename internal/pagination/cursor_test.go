package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNS-Science/solvis-query/internal/errors"
)

func tenItems() []int {
	return []int{100, 101, 102, 103, 104, 105, 106, 107, 108, 109}
}

func offsets[T any](p Page[T]) []int {
	out := make([]int, len(p.Edges))
	for i, e := range p.Edges {
		out[i] = e.Offset
	}
	return out
}

func TestCursorEncoding(t *testing.T) {
	c := EncodeCursor(2)
	raw, err := base64.StdEncoding.DecodeString(c)
	require.NoError(t, err)
	assert.Equal(t, "RuptureDetailConnectionCursor:2", string(raw))

	offset, err := DecodeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, 2, offset)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	bad := []string{
		"!!!not-base64",
		base64.StdEncoding.EncodeToString([]byte("OtherCursor:1")),
		base64.StdEncoding.EncodeToString([]byte("RuptureDetailConnectionCursor:abc")),
		base64.StdEncoding.EncodeToString([]byte("RuptureDetailConnectionCursor:-3")),
		base64.StdEncoding.EncodeToString([]byte("no separator")),
	}
	for _, c := range bad {
		_, err := DecodeCursor(c)
		assert.Equal(t, errors.ErrCodeInvalidCursor, errors.GetCode(err), c)
	}
}

func TestBuildPage_FirstPage(t *testing.T) {
	page, err := BuildPage(tenItems(), 3, "")
	require.NoError(t, err)

	assert.Equal(t, 10, page.TotalCount)
	assert.Equal(t, []int{0, 1, 2}, offsets(page))
	assert.Equal(t, 100, page.Edges[0].Item)
	assert.True(t, page.PageInfo.HasNextPage)
	require.NotNil(t, page.PageInfo.EndCursor)
	assert.Equal(t, EncodeCursor(2), *page.PageInfo.EndCursor)
}

func TestBuildPage_LastPage(t *testing.T) {
	page, err := BuildPage(tenItems(), 3, EncodeCursor(8))
	require.NoError(t, err)

	assert.Equal(t, []int{9}, offsets(page))
	assert.False(t, page.PageInfo.HasNextPage)
	assert.Equal(t, EncodeCursor(9), *page.PageInfo.EndCursor)
}

func TestBuildPage_ExactFit(t *testing.T) {
	page, err := BuildPage(tenItems(), 5, EncodeCursor(4))
	require.NoError(t, err)

	assert.Equal(t, []int{5, 6, 7, 8, 9}, offsets(page))
	assert.False(t, page.PageInfo.HasNextPage)
}

func TestBuildPage_PastTheEnd(t *testing.T) {
	page, err := BuildPage(tenItems(), 3, EncodeCursor(9))
	require.NoError(t, err)

	assert.Empty(t, page.Edges)
	assert.False(t, page.PageInfo.HasNextPage)
	assert.Nil(t, page.PageInfo.EndCursor)
	assert.Equal(t, 10, page.TotalCount)
}

func TestBuildPage_ZeroFirst(t *testing.T) {
	page, err := BuildPage(tenItems(), 0, "")
	require.NoError(t, err)
	assert.Empty(t, page.Edges)
	assert.Nil(t, page.PageInfo.EndCursor)
}

func TestBuildPage_Errors(t *testing.T) {
	_, err := BuildPage(tenItems(), 3, "garbage")
	assert.Equal(t, errors.ErrCodeInvalidCursor, errors.GetCode(err))

	_, err = BuildPage(tenItems(), -1, "")
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.GetCode(err))
}

func TestBuildPage_ExhaustivePagination(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i * 7
	}

	for _, first := range []int{1, 2, 5, 7, 23, 50} {
		var seen []int
		after := ""
		for pages := 0; ; pages++ {
			require.Less(t, pages, 100)
			page, err := BuildPage(items, first, after)
			require.NoError(t, err)
			for _, e := range page.Edges {
				seen = append(seen, e.Item)
			}
			if !page.PageInfo.HasNextPage {
				break
			}
			after = *page.PageInfo.EndCursor
		}
		assert.Equal(t, items, seen, "first=%d", first)
	}
}
