package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/sortbin"
)

const (
	// Request size limits
	MaxLocations  = 100
	MaxFaultNames = 100
	MaxRadiusKm   = 1000
	MaxPageSize   = 1000
	MaxSortKeys   = 8

	MaxIdentifierSize = 256
)

// Validator validates query requests
type Validator struct {
	maxLocations  int
	maxFaultNames int
	maxRadiusKm   int
	maxPageSize   int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxLocations:  MaxLocations,
		maxFaultNames: MaxFaultNames,
		maxRadiusKm:   MaxRadiusKm,
		maxPageSize:   MaxPageSize,
	}
}

// NewValidatorWithLimits creates a validator with custom limits
func NewValidatorWithLimits(maxLocations, maxFaultNames, maxRadiusKm, maxPageSize int) *Validator {
	return &Validator{
		maxLocations:  maxLocations,
		maxFaultNames: maxFaultNames,
		maxRadiusKm:   maxRadiusKm,
		maxPageSize:   maxPageSize,
	}
}

// ValidateFilter validates a normalized FilterCriteria
func (v *Validator) ValidateFilter(c model.FilterCriteria) error {
	if err := v.ValidateIdentifier("model_id", c.ModelID); err != nil {
		return err
	}
	if err := v.ValidateIdentifier("fault_system", c.FaultSystem); err != nil {
		return err
	}

	if len(c.LocationIDs) > v.maxLocations {
		return errors.InvalidArgument(fmt.Sprintf("at most %d location ids are allowed", v.maxLocations), nil).
			WithDetail("count", len(c.LocationIDs))
	}
	for _, id := range c.LocationIDs {
		if err := v.ValidateIdentifier("location_id", id); err != nil {
			return err
		}
	}
	if c.HasLocations() {
		if c.RadiusKm <= 0 {
			return errors.InvalidArgument("radius_km must be positive when location_ids are given", nil).
				WithDetail("radius_km", c.RadiusKm)
		}
		if c.RadiusKm > v.maxRadiusKm {
			return errors.InvalidArgument(fmt.Sprintf("radius_km exceeds maximum of %d", v.maxRadiusKm), nil).
				WithDetail("radius_km", c.RadiusKm)
		}
	}

	if len(c.CoruptureFaultNames) > v.maxFaultNames {
		return errors.InvalidArgument(fmt.Sprintf("at most %d fault names are allowed", v.maxFaultNames), nil).
			WithDetail("count", len(c.CoruptureFaultNames))
	}
	for _, name := range c.CoruptureFaultNames {
		if err := v.ValidateIdentifier("corupture_fault_name", name); err != nil {
			return err
		}
	}

	if err := validateBounds("rate", c.MinimumRate, c.MaximumRate); err != nil {
		return err
	}
	if err := validateBounds("mag", c.MinimumMag, c.MaximumMag); err != nil {
		return err
	}

	return v.ValidateSetOptions(c.FilterSetOptions)
}

// ValidateSetOptions ensures every group has a supported operation
func (v *Validator) ValidateSetOptions(o model.FilterSetOptions) error {
	for _, op := range []model.SetOperation{o.MultipleLocations, o.MultipleFaults, o.LocationsAndFaults} {
		if !op.Valid() {
			return errors.UnsupportedSetOperation(op.String())
		}
	}
	return nil
}

// ValidateIdentifier validates a non-empty identifier or name
func (v *Validator) ValidateIdentifier(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.InvalidArgument(fmt.Sprintf("%s cannot be empty", field), nil).
			WithDetail("field", field)
	}

	if len(value) > MaxIdentifierSize {
		return errors.InvalidArgument(fmt.Sprintf("%s exceeds maximum size of %d bytes", field, MaxIdentifierSize), nil).
			WithDetail("field", field)
	}

	for _, r := range value {
		if unicode.IsControl(r) {
			return errors.InvalidArgument(fmt.Sprintf("%s cannot contain control characters", field), nil).
				WithDetail("field", field)
		}
	}

	return nil
}

// ValidateSort validates sort keys against the known rupture attributes
func (v *Validator) ValidateSort(keys []model.SortKey) error {
	if len(keys) > MaxSortKeys {
		return errors.InvalidArgument(fmt.Sprintf("at most %d sort keys are allowed", MaxSortKeys), nil)
	}
	for _, k := range keys {
		if _, err := sortbin.ColumnFor(k.Attribute); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePagination validates the page size
func (v *Validator) ValidatePagination(first int) error {
	if first < 0 {
		return errors.InvalidArgument("first cannot be negative", nil).WithDetail("first", first)
	}
	if first > v.maxPageSize {
		return errors.InvalidArgument(fmt.Sprintf("first exceeds maximum page size of %d", v.maxPageSize), nil).
			WithDetail("first", first)
	}
	return nil
}

func validateBounds(name string, lower, upper *float64) error {
	for _, b := range []*float64{lower, upper} {
		if b == nil {
			continue
		}
		if math.IsNaN(*b) || math.IsInf(*b, 0) {
			return errors.InvalidArgument(fmt.Sprintf("%s bounds must be finite", name), nil)
		}
		if *b < 0 {
			return errors.InvalidArgument(fmt.Sprintf("%s bounds cannot be negative", name), nil).
				WithDetail("value", *b)
		}
	}
	if lower != nil && upper != nil && *lower > *upper {
		return errors.InvalidArgument(fmt.Sprintf("minimum_%s cannot exceed maximum_%s", name, name), nil).
			WithDetail("minimum", *lower).
			WithDetail("maximum", *upper)
	}
	return nil
}
