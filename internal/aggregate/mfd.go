package aggregate

import (
	"math"
	"sort"

	"github.com/GNS-Science/solvis-query/internal/model"
)

// MFD histogram layout. Bin edges run from MFDEdgeMin to MFDEdgeMax in
// MFDStep increments and each bin is (lower, upper]. Bins are reported
// when their centre lies within [MFDReportMin, MFDReportMax].
const (
	MFDEdgeMin   = 5.0
	MFDEdgeMax   = 9.9
	MFDStep      = 0.1
	MFDReportMin = 6.8
	MFDReportMax = 9.8
)

// MFDEdges returns the histogram bin edges.
func MFDEdges() []float64 {
	lo := int(math.Round(MFDEdgeMin * 100))
	hi := int(math.Round(MFDEdgeMax * 100))
	step := int(math.Round(MFDStep * 100))
	edges := make([]float64, 0, (hi-lo)/step+1)
	for x := lo; x <= hi; x += step {
		edges = append(edges, float64(x)/100)
	}
	return edges
}

// MFD sums rate_weighted_mean into magnitude bins. The cumulative rate of
// a bin is the total rate at or above it, accumulated over every bin
// before the reporting window is applied. Magnitudes outside the edges
// are not counted. rows holds one entry per distinct rupture, so a rupture
// spanning many sections contributes its rate once.
func MFD(rows []model.RuptureRow) []model.MFDBin {
	edges := MFDEdges()
	rates := make([]float64, len(edges)-1)

	for _, row := range rows {
		i := sort.SearchFloat64s(edges, row.Magnitude)
		if i == 0 || i == len(edges) {
			continue
		}
		rates[i-1] += row.RateWeightedMean
	}

	cumulative := make([]float64, len(rates))
	total := 0.0
	for i := len(rates) - 1; i >= 0; i-- {
		total += rates[i]
		cumulative[i] = total
	}

	out := make([]model.MFDBin, 0, len(rates))
	for i := range rates {
		centre := math.Round((edges[i]+edges[i+1])*50) / 100
		if centre < MFDReportMin || centre > MFDReportMax {
			continue
		}
		out = append(out, model.MFDBin{
			Bin:            centre,
			Rate:           rates[i],
			CumulativeRate: cumulative[i],
		})
	}
	return out
}
