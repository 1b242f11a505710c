package model

import (
	"sort"
	"strconv"
	"strings"
)

// CacheKey is the canonical identity of a memoized computation.
type CacheKey string

// Scope names a family of cached computations. Each scope keys on the
// subset of FilterCriteria fields it reads.
type Scope string

const (
	ScopeLocationRuptures Scope = "location_ruptures"
	ScopeFaultRuptures    Scope = "fault_ruptures"
	ScopeFilteredRuptures Scope = "filtered_ruptures"
	ScopeSectionAggregate Scope = "section_aggregates"
	ScopeMFD              Scope = "mfd"
	ScopeSortedRuptures   Scope = "sorted_ruptures"
)

// KeyFor canonicalizes c into a key for scope. Lists merged with an
// order-independent operation are sorted and deduplicated, DIFFERENCE
// lists keep caller order. Filter set options are encoded by name so
// their declaration order never matters.
func KeyFor(scope Scope, c FilterCriteria) CacheKey {
	c = c.Normalize()
	opts := c.FilterSetOptions

	parts := []string{
		string(scope),
		"model=" + strconv.Quote(c.ModelID),
		"fs=" + strconv.Quote(c.FaultSystem),
	}

	switch scope {
	case ScopeLocationRuptures:
		parts = append(parts,
			"locations="+canonicalList(c.LocationIDs, opts.MultipleLocations),
			"radius="+strconv.Itoa(c.RadiusKm),
			"op="+opts.MultipleLocations.String(),
		)
	case ScopeFaultRuptures:
		parts = append(parts,
			"faults="+canonicalList(c.CoruptureFaultNames, opts.MultipleFaults),
			"op="+opts.MultipleFaults.String(),
		)
	default:
		radius := 0
		if c.HasLocations() {
			radius = c.RadiusKm
		}
		parts = append(parts,
			"locations="+canonicalList(c.LocationIDs, opts.MultipleLocations),
			"radius="+strconv.Itoa(radius),
			"faults="+canonicalList(c.CoruptureFaultNames, opts.MultipleFaults),
			"min_rate="+formatFloat(Float(c.EffectiveMinimumRate())),
			"max_rate="+formatFloat(c.MaximumRate),
			"min_mag="+formatFloat(c.MinimumMag),
			"max_mag="+formatFloat(c.MaximumMag),
			"options="+canonicalOptions(opts),
		)
	}
	return CacheKey(strings.Join(parts, "|"))
}

// WithSort extends a key with an ordered sort specification.
func (k CacheKey) WithSort(keys []SortKey) CacheKey {
	specs := make([]string, len(keys))
	for i, sk := range keys {
		dir := "asc"
		if !sk.Ascending {
			dir = "desc"
		}
		specs[i] = strconv.Quote(sk.Attribute) + ":" + dir
	}
	return CacheKey(string(k) + "|sort=[" + strings.Join(specs, ",") + "]")
}

func canonicalList(items []string, op SetOperation) string {
	list := items
	if op.OrderIndependent() {
		seen := make(map[string]struct{}, len(items))
		list = make([]string, 0, len(items))
		for _, item := range items {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			list = append(list, item)
		}
		sort.Strings(list)
	}
	quoted := make([]string, len(list))
	for i, item := range list {
		quoted[i] = strconv.Quote(item)
	}
	return "(" + strings.Join(quoted, ",") + ")"
}

func canonicalOptions(o FilterSetOptions) string {
	pairs := map[string]string{
		"multiple_locations":   o.MultipleLocations.String(),
		"multiple_faults":      o.MultipleFaults.String(),
		"locations_and_faults": o.LocationsAndFaults.String(),
	}
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name + "=" + pairs[name]
	}
	return "(" + strings.Join(out, ",") + ")"
}

func formatFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}
