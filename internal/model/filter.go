// Package model holds the value types shared by the query engine.
package model

import (
	"strings"
)

// DefaultMinimumRate is the permissive rate floor used when a request
// omits minimum_rate.
const DefaultMinimumRate = 1e-20

// FilterSetOptions chooses the set operation for each constraint group.
type FilterSetOptions struct {
	MultipleLocations  SetOperation `json:"multiple_locations"`
	MultipleFaults     SetOperation `json:"multiple_faults"`
	LocationsAndFaults SetOperation `json:"locations_and_faults"`
}

// DefaultFilterSetOptions returns INTERSECTION / UNION / INTERSECTION.
func DefaultFilterSetOptions() FilterSetOptions {
	return FilterSetOptions{
		MultipleLocations:  SetOpIntersection,
		MultipleFaults:     SetOpUnion,
		LocationsAndFaults: SetOpIntersection,
	}
}

// withDefaults fills unset operations from DefaultFilterSetOptions.
func (o FilterSetOptions) withDefaults() FilterSetOptions {
	d := DefaultFilterSetOptions()
	if o.MultipleLocations == SetOpUnset {
		o.MultipleLocations = d.MultipleLocations
	}
	if o.MultipleFaults == SetOpUnset {
		o.MultipleFaults = d.MultipleFaults
	}
	if o.LocationsAndFaults == SetOpUnset {
		o.LocationsAndFaults = d.LocationsAndFaults
	}
	return o
}

// FilterCriteria is one rupture query. Treat values as immutable once
// normalized.
type FilterCriteria struct {
	ModelID             string           `json:"model_id"`
	FaultSystem         string           `json:"fault_system"`
	LocationIDs         []string         `json:"location_ids,omitempty"`
	RadiusKm            int              `json:"radius_km,omitempty"`
	CoruptureFaultNames []string         `json:"corupture_fault_names,omitempty"`
	MinimumRate         *float64         `json:"minimum_rate,omitempty"`
	MaximumRate         *float64         `json:"maximum_rate,omitempty"`
	MinimumMag          *float64         `json:"minimum_mag,omitempty"`
	MaximumMag          *float64         `json:"maximum_mag,omitempty"`
	FilterSetOptions    FilterSetOptions `json:"filter_set_options"`
}

// Normalize returns a copy with trimmed identifiers, blank list entries
// dropped and unset filter options defaulted. List order is preserved.
func (c FilterCriteria) Normalize() FilterCriteria {
	out := c
	out.ModelID = strings.TrimSpace(c.ModelID)
	out.FaultSystem = strings.TrimSpace(c.FaultSystem)
	out.LocationIDs = trimAll(c.LocationIDs)
	out.CoruptureFaultNames = trimAll(c.CoruptureFaultNames)
	out.FilterSetOptions = c.FilterSetOptions.withDefaults()
	out.MinimumRate = copyFloat(c.MinimumRate)
	out.MaximumRate = copyFloat(c.MaximumRate)
	out.MinimumMag = copyFloat(c.MinimumMag)
	out.MaximumMag = copyFloat(c.MaximumMag)
	return out
}

// EffectiveMinimumRate returns minimum_rate or DefaultMinimumRate.
func (c FilterCriteria) EffectiveMinimumRate() float64 {
	if c.MinimumRate == nil {
		return DefaultMinimumRate
	}
	return *c.MinimumRate
}

// HasLocations reports whether the location group constrains the result.
func (c FilterCriteria) HasLocations() bool {
	return len(c.LocationIDs) > 0
}

// HasFaults reports whether the co-rupture fault group constrains the result.
func (c FilterCriteria) HasFaults() bool {
	return len(c.CoruptureFaultNames) > 0
}

// Float is a helper for building optional bounds.
func Float(v float64) *float64 {
	return &v
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
