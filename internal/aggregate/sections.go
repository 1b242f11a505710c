package aggregate

import (
	"math"
	"sort"

	"github.com/GNS-Science/solvis-query/internal/model"
)

type sectionAccumulator struct {
	count   int
	magMin  float64
	magMax  float64
	magSum  float64
	rateSum float64
	rateMin float64
	rateMax float64
}

func (a *sectionAccumulator) add(row model.RuptureRow) {
	if a.count == 0 {
		a.magMin, a.magMax = row.Magnitude, row.Magnitude
		a.rateMin, a.rateMax = row.RateWeightedMean, row.RateWeightedMean
	} else {
		a.magMin = math.Min(a.magMin, row.Magnitude)
		a.magMax = math.Max(a.magMax, row.Magnitude)
		a.rateMin = math.Min(a.rateMin, row.RateWeightedMean)
		a.rateMax = math.Max(a.rateMax, row.RateWeightedMean)
	}
	a.count++
	a.magSum += row.Magnitude
	a.rateSum += row.RateWeightedMean
}

// SectionAggregates groups rows by the fault sections they span. Each
// section that at least one row touches yields one entry, ordered by
// section index. Sections missing from the table are skipped.
func SectionAggregates(table Table, rows []model.RuptureRow) []model.AggregatedSection {
	acc := make(map[int]*sectionAccumulator)
	for _, row := range rows {
		for _, idx := range table.SectionsForRupture(row.Index) {
			a, ok := acc[idx]
			if !ok {
				a = &sectionAccumulator{}
				acc[idx] = a
			}
			a.add(row)
		}
	}

	indices := make([]int, 0, len(acc))
	for idx := range acc {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]model.AggregatedSection, 0, len(indices))
	for _, idx := range indices {
		sec, ok := table.Section(idx)
		if !ok {
			continue
		}
		a := acc[idx]
		out = append(out, model.AggregatedSection{
			Section:       sec,
			RuptureCount:  a.count,
			MagnitudeMin:  a.magMin,
			MagnitudeMax:  a.magMax,
			MagnitudeMean: a.magSum / float64(a.count),
			RateSum:       a.rateSum,
			RateMin:       a.rateMin,
			RateMax:       a.rateMax,
			RateMean:      a.rateSum / float64(a.count),
		})
	}
	return out
}

// Summarize reports counts and ranges over a section aggregation. The
// participation rate of a section is its summed rate.
func Summarize(modelID, faultSystem string, rows []model.RuptureRow, sections []model.AggregatedSection) model.SectionsSummary {
	s := model.SectionsSummary{
		ModelID:      modelID,
		FaultSystem:  faultSystem,
		RuptureCount: len(rows),
		SectionCount: len(sections),
	}
	for i, sec := range sections {
		if i == 0 {
			s.MinMagnitude, s.MaxMagnitude = sec.MagnitudeMin, sec.MagnitudeMax
			s.MinParticipationRate, s.MaxParticipationRate = sec.RateSum, sec.RateSum
			continue
		}
		s.MinMagnitude = math.Min(s.MinMagnitude, sec.MagnitudeMin)
		s.MaxMagnitude = math.Max(s.MaxMagnitude, sec.MagnitudeMax)
		s.MinParticipationRate = math.Min(s.MinParticipationRate, sec.RateSum)
		s.MaxParticipationRate = math.Max(s.MaxParticipationRate, sec.RateSum)
	}
	return s
}
