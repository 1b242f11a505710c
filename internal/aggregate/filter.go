// Package aggregate derives filtered rupture tables, per-section statistics
// and magnitude-frequency histograms from a fault system solution.
package aggregate

import (
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/setops"
)

// Table is the read view of a fault system solution used here.
type Table interface {
	FaultSystem() string
	RupturesWithRates() []model.RuptureRow
	Section(index int) (model.FaultSection, bool)
	SectionsForRupture(index int) []int
}

// FilterRuptures keeps the rows whose index is in ids, unless ids is
// unconstrained, and whose magnitude and rate fall within the bounds of c.
// Lower bounds are exclusive and upper bounds inclusive. Rows keep table
// order.
func FilterRuptures(table Table, ids setops.Group, c model.FilterCriteria) []model.RuptureRow {
	rows := table.RupturesWithRates()
	out := make([]model.RuptureRow, 0)
	minRate := c.EffectiveMinimumRate()

	for _, row := range rows {
		if ids.Constrained && !ids.Set.Contains(row.Index) {
			continue
		}
		if !InBounds(row, minRate, c.MaximumRate, c.MinimumMag, c.MaximumMag) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// InBounds applies the attribute window to one row.
func InBounds(row model.RuptureRow, minRate float64, maxRate, minMag, maxMag *float64) bool {
	if minMag != nil && !(row.Magnitude > *minMag) {
		return false
	}
	if maxMag != nil && !(row.Magnitude <= *maxMag) {
		return false
	}
	if !(row.RateWeightedMean > minRate) {
		return false
	}
	if maxRate != nil && !(row.RateWeightedMean <= *maxRate) {
		return false
	}
	return true
}

// Indices returns the rupture indices of rows in order.
func Indices(rows []model.RuptureRow) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.Index
	}
	return out
}
