package query

import (
	"github.com/GNS-Science/solvis-query/internal/aggregate"
	"github.com/GNS-Science/solvis-query/internal/model"
)

// Messages returned when a filter leaves nothing to report or too much.
const (
	MsgNoSections       = "No fault sections satisfy the filter."
	MsgNoRuptures       = "No ruptures satisfy the filter."
	MsgTooManySections  = "Too many fault sections satisfy the filter, please try more selective values."
	DefaultSectionLimit = 10000
)

// PageRequest selects a window of the ordered rupture list. A zero First
// uses pagination.DefaultPageSize.
type PageRequest struct {
	First int
	After string
}

// SectionsResult is the outcome of a rupture sections query.
type SectionsResult struct {
	model.SectionsSummary
	Filter      model.FilterCriteria        `json:"filter_arguments"`
	Sections    []model.AggregatedSection   `json:"-"`
	FaultTraces aggregate.FeatureCollection `json:"fault_traces"`
}

// RuptureDetailResult is one rupture with its section traces.
type RuptureDetailResult struct {
	ID string `json:"id"`
	model.RuptureDetail
	FaultTraces aggregate.FeatureCollection `json:"fault_traces"`
}
