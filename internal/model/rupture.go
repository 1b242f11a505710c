package model

import (
	"encoding/json"
	"fmt"
)

// Column names of the ruptures-with-rates table.
const (
	ColMagnitude        = "Magnitude"
	ColArea             = "Area (m^2)"
	ColLength           = "Length (m)"
	ColRakeMean         = "Average Rake (degrees)"
	ColRateWeightedMean = "rate_weighted_mean"
	ColRateMax          = "rate_max"
	ColRateMin          = "rate_min"
	ColRateCount        = "rate_count"
)

// RuptureRow is one row of a fault system's ruptures-with-rates table.
type RuptureRow struct {
	Index            int     `json:"rupture_index" db:"rupture_index"`
	Magnitude        float64 `json:"magnitude" db:"magnitude"`
	Area             float64 `json:"area" db:"area_m2"`
	Length           float64 `json:"length" db:"length_m"`
	RakeMean         float64 `json:"rake_mean" db:"rake_mean"`
	RateWeightedMean float64 `json:"rate_weighted_mean" db:"rate_weighted_mean"`
	RateMax          float64 `json:"rate_max" db:"rate_max"`
	RateMin          float64 `json:"rate_min" db:"rate_min"`
	RateCount        float64 `json:"rate_count" db:"rate_count"`
}

// Column returns the value stored under a table column name.
func (r RuptureRow) Column(name string) (float64, bool) {
	switch name {
	case ColMagnitude:
		return r.Magnitude, true
	case ColArea:
		return r.Area, true
	case ColLength:
		return r.Length, true
	case ColRakeMean:
		return r.RakeMean, true
	case ColRateWeightedMean:
		return r.RateWeightedMean, true
	case ColRateMax:
		return r.RateMax, true
	case ColRateMin:
		return r.RateMin, true
	case ColRateCount:
		return r.RateCount, true
	default:
		return 0, false
	}
}

// RuptureDetail is the page node describing a single rupture.
type RuptureDetail struct {
	ModelID          string  `json:"model_id"`
	FaultSystem      string  `json:"fault_system"`
	RuptureIndex     int     `json:"rupture_index"`
	Magnitude        float64 `json:"magnitude"`
	Area             float64 `json:"area"`
	Length           float64 `json:"length"`
	RakeMean         float64 `json:"rake_mean"`
	RateWeightedMean float64 `json:"rate_weighted_mean"`
	RateMax          float64 `json:"rate_max"`
	RateMin          float64 `json:"rate_min"`
	RateCount        float64 `json:"rate_count"`
}

// NewRuptureDetail joins a table row with its owning model and fault system.
func NewRuptureDetail(modelID, faultSystem string, row RuptureRow) RuptureDetail {
	return RuptureDetail{
		ModelID:          modelID,
		FaultSystem:      faultSystem,
		RuptureIndex:     row.Index,
		Magnitude:        row.Magnitude,
		Area:             row.Area,
		Length:           row.Length,
		RakeMean:         row.RakeMean,
		RateWeightedMean: row.RateWeightedMean,
		RateMax:          row.RateMax,
		RateMin:          row.RateMin,
		RateCount:        row.RateCount,
	}
}

// NodeID is "<fault_system>:<rupture_index>".
func (d RuptureDetail) NodeID() string {
	return fmt.Sprintf("%s:%d", d.FaultSystem, d.RuptureIndex)
}

// SortKey orders rupture rows by one attribute.
type SortKey struct {
	Attribute string `json:"attribute"`
	Ascending bool   `json:"ascending"`
}

// UnmarshalJSON defaults Ascending to true when the field is absent.
func (k *SortKey) UnmarshalJSON(data []byte) error {
	var raw struct {
		Attribute string `json:"attribute"`
		Ascending *bool  `json:"ascending"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.Attribute = raw.Attribute
	k.Ascending = raw.Ascending == nil || *raw.Ascending
	return nil
}
