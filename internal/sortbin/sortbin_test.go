package sortbin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

func indices(rows []model.RuptureRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Index
	}
	return out
}

func testRows() []model.RuptureRow {
	return []model.RuptureRow{
		{Index: 0, Magnitude: 7.00, RateWeightedMean: 1e-5, RateMax: 2e-5},
		{Index: 1, Magnitude: 8.50, RateWeightedMean: 1e-7, RateMax: 3e-7},
		{Index: 2, Magnitude: 7.01, RateWeightedMean: 1e-3, RateMax: 5e-3},
		{Index: 3, Magnitude: 6.20, RateWeightedMean: 1e-4, RateMax: 1e-4},
		{Index: 4, Magnitude: 8.51, RateWeightedMean: 1e-6, RateMax: 1e-6},
	}
}

func TestColumnFor(t *testing.T) {
	tests := []struct {
		attribute string
		column    string
	}{
		{"magnitude", "Magnitude"},
		{"rake_mean", "Average Rake (degrees)"},
		{"area", "Area (m^2)"},
		{"length", "Length (m)"},
		{"rate_weighted_mean", "rate_weighted_mean"},
		{"rate_max", "rate_max"},
		{"rate_min", "rate_min"},
		{"rate_count", "rate_count"},
	}
	for _, tt := range tests {
		t.Run(tt.attribute, func(t *testing.T) {
			col, err := ColumnFor(tt.attribute)
			require.NoError(t, err)
			assert.Equal(t, tt.column, col)
		})
	}

	_, err := ColumnFor("colour")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
	assert.Len(t, Attributes(), 8)
}

func TestSort_SingleKeyIsPlain(t *testing.T) {
	rows := testRows()

	asc, err := Sort(rows, []model.SortKey{{Attribute: "magnitude", Ascending: true}}, 1e-20)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 2, 1, 4}, indices(asc))

	desc, err := Sort(rows, []model.SortKey{{Attribute: "magnitude", Ascending: false}}, 1e-20)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2, 0, 3}, indices(desc))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, indices(rows), "input is not modified")
}

func TestSort_NoKeysKeepsOrder(t *testing.T) {
	out, err := Sort(testRows(), nil, 1e-20)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indices(out))
}

func TestSort_BinnedMagnitudeThenRate(t *testing.T) {
	// 7.00/7.01 share a magnitude bin as do 8.50/8.51, so within each the
	// descending rate decides.
	keys := []model.SortKey{
		{Attribute: "magnitude", Ascending: true},
		{Attribute: "rate_weighted_mean", Ascending: false},
	}
	edges := BinEdges("magnitude", 1e-20)
	require.Equal(t, BinIndex(edges, 7.00), BinIndex(edges, 7.01))
	require.Equal(t, BinIndex(edges, 8.50), BinIndex(edges, 8.51))

	out, err := Sort(testRows(), keys, 1e-20)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 0, 4, 1}, indices(out))

	keys[0].Ascending = false
	out, err = Sort(testRows(), keys, 1e-20)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2, 0, 3}, indices(out))
}

func TestSort_BinnedRateThenMagnitude(t *testing.T) {
	rows := []model.RuptureRow{
		{Index: 0, Magnitude: 7.0, RateMax: 1.00e-6},
		{Index: 1, Magnitude: 8.0, RateMax: 1.01e-6},
		{Index: 2, Magnitude: 6.5, RateMax: 5e-3},
	}
	keys := []model.SortKey{
		{Attribute: "rate_max", Ascending: false},
		{Attribute: "magnitude", Ascending: false},
	}

	out, err := Sort(rows, keys, 1e-10)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, indices(out))
}

func TestSort_UnknownAttribute(t *testing.T) {
	_, err := Sort(testRows(), []model.SortKey{{Attribute: "nope"}}, 1e-20)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
}

func TestBinEdges(t *testing.T) {
	mag := BinEdges("magnitude", 1e-20)
	require.Len(t, mag, 50)
	assert.InDelta(t, 5.0, mag[0], 1e-12)
	assert.InDelta(t, 10.0, mag[49], 1e-12)
	for i := 1; i < len(mag); i++ {
		assert.Greater(t, mag[i], mag[i-1])
	}
	// log spacing keeps the ratio constant
	assert.InDelta(t, mag[1]/mag[0], mag[49]/mag[48], 1e-9)

	tests := []struct {
		minRate float64
		count   int
	}{
		{1e-20, 190},
		{1e-10, 90},
		{1e-6, 50},
		{5e-4, 30},
	}
	for _, tt := range tests {
		edges := BinEdges("rate_weighted_mean", tt.minRate)
		assert.Len(t, edges, tt.count, "min rate %g", tt.minRate)
		assert.InDelta(t, tt.minRate, edges[0], tt.minRate*1e-9)
		assert.Equal(t, 1.0, edges[len(edges)-1])
	}

	assert.Len(t, BinEdges("rate_max", 0), 190, "non-positive floors fall back to the default")
}

func TestBinIndexAndLabel(t *testing.T) {
	edges := []float64{1, 10, 100}

	assert.Equal(t, -1, BinIndex(edges, 0.5))
	assert.Equal(t, 0, BinIndex(edges, 1))
	assert.Equal(t, 0, BinIndex(edges, 10))
	assert.Equal(t, 1, BinIndex(edges, 10.5))
	assert.Equal(t, 1, BinIndex(edges, 100))
	assert.Equal(t, 2, BinIndex(edges, 1000))

	assert.Equal(t, 10.0, BinLabel(edges, 50))
	assert.True(t, math.IsNaN(BinLabel(edges, 1000)))
}
