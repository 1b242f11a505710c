// Package pagination implements forward, offset-based cursor pagination
// over an ordered collection.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

const (
	// CursorType prefixes every encoded offset.
	CursorType = "RuptureDetailConnectionCursor"

	DefaultPageSize = 5
)

// EncodeCursor returns the opaque cursor for a zero-based offset.
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(CursorType + ":" + strconv.Itoa(offset)))
}

// DecodeCursor returns the offset held by cursor.
func DecodeCursor(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errors.InvalidCursor(cursor, err)
	}
	kind, value, ok := strings.Cut(string(raw), ":")
	if !ok || kind != CursorType {
		return 0, errors.InvalidCursor(cursor, fmt.Errorf("unexpected cursor type"))
	}
	offset, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.InvalidCursor(cursor, err)
	}
	if offset < 0 {
		return 0, errors.InvalidCursor(cursor, fmt.Errorf("negative offset %d", offset))
	}
	return offset, nil
}

// Edge is one item of a page with its cursor and absolute offset.
type Edge[T any] struct {
	Cursor string
	Offset int
	Item   T
}

// Page is a window over an ordered collection.
type Page[T any] struct {
	TotalCount int
	Edges      []Edge[T]
	PageInfo   model.PageInfo
}

// BuildPage returns up to first items following the after cursor, or from
// the start when after is empty. The next page exists when the collection
// extends past the last returned edge. An empty window reports no next
// page and no end cursor.
func BuildPage[T any](items []T, first int, after string) (Page[T], error) {
	start := 0
	if after != "" {
		offset, err := DecodeCursor(after)
		if err != nil {
			return Page[T]{}, err
		}
		start = offset + 1
	}
	if first < 0 {
		return Page[T]{}, errors.InvalidArgument("first cannot be negative", nil).WithDetail("first", first)
	}

	total := len(items)
	page := Page[T]{TotalCount: total, Edges: []Edge[T]{}}
	if start >= total || first == 0 {
		return page, nil
	}

	end := start + first
	if end > total {
		end = total
	}
	for offset := start; offset < end; offset++ {
		page.Edges = append(page.Edges, Edge[T]{
			Cursor: EncodeCursor(offset),
			Offset: offset,
			Item:   items[offset],
		})
	}

	last := page.Edges[len(page.Edges)-1]
	endCursor := last.Cursor
	page.PageInfo = model.PageInfo{
		EndCursor:   &endCursor,
		HasNextPage: total > last.Offset+1,
	}
	return page, nil
}
