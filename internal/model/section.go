package model

// LonLat is a trace vertex in degrees, longitude first.
type LonLat [2]float64

// FaultSection holds the static attributes of one fault section.
type FaultSection struct {
	Index          int      `json:"section_index"`
	Name           string   `json:"fault_name"`
	ParentID       int      `json:"parent_id"`
	ParentName     string   `json:"parent_name"`
	DipDeg         float64  `json:"dip_deg"`
	RakeDeg        float64  `json:"rake_deg"`
	UpperDepth     float64  `json:"upper_depth"`
	LowerDepth     float64  `json:"lower_depth"`
	SlipRate       float64  `json:"slip_rate"`
	SlipRateStdDev float64  `json:"slip_rate_stddev"`
	Trace          []LonLat `json:"trace"`
}

// AggregatedSection is a fault section joined with statistics over the
// filtered ruptures that include it.
type AggregatedSection struct {
	Section       FaultSection `json:"section"`
	RuptureCount  int          `json:"rupture_count"`
	MagnitudeMin  float64      `json:"magnitude_min"`
	MagnitudeMax  float64      `json:"magnitude_max"`
	MagnitudeMean float64      `json:"magnitude_mean"`
	RateSum       float64      `json:"rate_weighted_mean_sum"`
	RateMin       float64      `json:"rate_weighted_mean_min"`
	RateMax       float64      `json:"rate_weighted_mean_max"`
	RateMean      float64      `json:"rate_weighted_mean_mean"`
}

// SectionsSummary describes a section aggregation result.
type SectionsSummary struct {
	ModelID              string  `json:"model_id"`
	FaultSystem          string  `json:"fault_system"`
	RuptureCount         int     `json:"rupture_count"`
	SectionCount         int     `json:"section_count"`
	MinMagnitude         float64 `json:"min_magnitude"`
	MaxMagnitude         float64 `json:"max_magnitude"`
	MinParticipationRate float64 `json:"min_participation_rate"`
	MaxParticipationRate float64 `json:"max_participation_rate"`
}

// MFDBin is one magnitude-frequency histogram bin.
type MFDBin struct {
	Bin            float64 `json:"bin_center"`
	Rate           float64 `json:"rate"`
	CumulativeRate float64 `json:"cumulative_rate"`
}

// Location is a named point that location filters refer to by ID.
type Location struct {
	ID        string  `json:"location_id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}
