package model

// PageInfo describes the window returned by a forward pagination request.
type PageInfo struct {
	EndCursor   *string `json:"end_cursor"`
	HasNextPage bool    `json:"has_next_page"`
}

// RuptureEdge pairs a rupture with the cursor addressing it.
type RuptureEdge struct {
	Cursor string        `json:"cursor"`
	Node   RuptureDetail `json:"node"`
}

// RuptureConnection is one page of ruptures.
type RuptureConnection struct {
	TotalCount int           `json:"total_count"`
	Edges      []RuptureEdge `json:"edges"`
	PageInfo   PageInfo      `json:"page_info"`
}
