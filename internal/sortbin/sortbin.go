// Package sortbin orders rupture rows by one or more attributes. With more
// than one sort key the primary attribute is grouped into log-spaced bins
// first so that the secondary keys order rows of similar magnitude or rate.
package sortbin

import (
	"fmt"
	"math"
	"sort"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

const (
	MagnitudeBinMin   = 5.0
	MagnitudeBinMax   = 10.0
	MagnitudeBinCount = 50

	RateBinMax = 1.0

	// absorbs rounding in log10 of exact powers of ten
	log10Epsilon = 1e-12
)

var attributeColumns = map[string]string{
	"magnitude":          model.ColMagnitude,
	"rake_mean":          model.ColRakeMean,
	"area":               model.ColArea,
	"length":             model.ColLength,
	"rate_weighted_mean": model.ColRateWeightedMean,
	"rate_max":           model.ColRateMax,
	"rate_min":           model.ColRateMin,
	"rate_count":         model.ColRateCount,
}

// ColumnFor maps a public attribute name to its table column.
func ColumnFor(attribute string) (string, error) {
	col, ok := attributeColumns[attribute]
	if !ok {
		return "", errors.InvalidArgument(fmt.Sprintf("unknown sort attribute '%s'", attribute), nil).
			WithDetail("attribute", attribute)
	}
	return col, nil
}

// Attributes lists the sortable attribute names.
func Attributes() []string {
	out := make([]string, 0, len(attributeColumns))
	for name := range attributeColumns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Sort returns rows ordered by keys. A single key is a plain stable sort.
// With several keys the first is replaced by its bin (see BinEdges) and
// ties fall through to the remaining keys in order. Input order breaks
// any remaining ties. rows is not modified.
func Sort(rows []model.RuptureRow, keys []model.SortKey, minRate float64) ([]model.RuptureRow, error) {
	out := make([]model.RuptureRow, len(rows))
	copy(out, rows)
	if len(keys) == 0 {
		return out, nil
	}

	cols := make([]string, len(keys))
	for i, k := range keys {
		col, err := ColumnFor(k.Attribute)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	type sortable struct {
		row  model.RuptureRow
		bin  int
		vals []float64
	}

	var edges []float64
	if len(keys) > 1 {
		edges = BinEdges(keys[0].Attribute, minRate)
	}

	items := make([]sortable, len(out))
	for i, row := range out {
		vals := make([]float64, len(cols))
		for j, col := range cols {
			vals[j], _ = row.Column(col)
		}
		item := sortable{row: row, vals: vals}
		if edges != nil {
			item.bin = BinIndex(edges, vals[0])
		}
		items[i] = item
	}

	less := func(a, b sortable) bool {
		start := 0
		if edges != nil {
			if a.bin != b.bin {
				if keys[0].Ascending {
					return a.bin < b.bin
				}
				return a.bin > b.bin
			}
			start = 1
		}
		for j := start; j < len(keys); j++ {
			if a.vals[j] == b.vals[j] {
				continue
			}
			if keys[j].Ascending {
				return a.vals[j] < b.vals[j]
			}
			return a.vals[j] > b.vals[j]
		}
		return false
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j])
	})

	for i, item := range items {
		out[i] = item.row
	}
	return out, nil
}

// BinEdges returns the log-spaced bin edges for a primary sort attribute.
// Magnitude uses MagnitudeBinCount edges over [5.0, 10.0]. Any other
// attribute is treated as rate-like: edges span [minRate, 1.0] and their
// count is 10 per decade of minRate, |floor(log10(minRate)) + 1| decades.
func BinEdges(attribute string, minRate float64) []float64 {
	if attribute == "magnitude" {
		return LogSpace(MagnitudeBinMin, MagnitudeBinMax, MagnitudeBinCount)
	}
	if minRate <= 0 || minRate >= RateBinMax || math.IsNaN(minRate) {
		minRate = model.DefaultMinimumRate
	}
	places := int(math.Abs(math.Floor(math.Log10(minRate)+log10Epsilon) + 1))
	n := 10 * places
	if n < 2 {
		n = 2
	}
	return LogSpace(minRate, RateBinMax, n)
}

// LogSpace returns n values evenly spaced in log10 between lo and hi inclusive.
func LogSpace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	a, b := math.Log10(lo), math.Log10(hi)
	step := (b - a) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pow(10, a+float64(i)*step)
	}
	out[0], out[n-1] = lo, hi
	return out
}

// BinIndex returns the bin holding v. Bin i covers (edges[i], edges[i+1]]
// and bin 0 also includes edges[0]. Values below the first edge return -1,
// values above the last edge return len(edges)-1.
func BinIndex(edges []float64, v float64) int {
	if len(edges) == 0 {
		return 0
	}
	if v < edges[0] {
		return -1
	}
	if v > edges[len(edges)-1] {
		return len(edges) - 1
	}
	j := sort.SearchFloat64s(edges, v)
	if j == 0 {
		return 0
	}
	return j - 1
}

// BinLabel returns the lower edge of v's bin, or NaN when v lies outside the edges.
func BinLabel(edges []float64, v float64) float64 {
	i := BinIndex(edges, v)
	if i < 0 || i >= len(edges)-1 {
		return math.NaN()
	}
	return edges[i]
}
