package aggregate

import (
	"github.com/GNS-Science/solvis-query/internal/geometry"
	"github.com/GNS-Science/solvis-query/internal/model"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry is a GeoJSON geometry. Coordinates hold lon/lat pairs nested
// as the geometry type requires.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

func newCollection(n int) FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, n)}
}

func lineString(trace []model.LonLat) Geometry {
	coords := make([]model.LonLat, len(trace))
	copy(coords, trace)
	return Geometry{Type: "LineString", Coordinates: coords}
}

func sectionProperties(sec model.FaultSection) map[string]interface{} {
	return map[string]interface{}{
		"section_index":    sec.Index,
		"fault_name":       sec.Name,
		"parent_id":        sec.ParentID,
		"parent_name":      sec.ParentName,
		"dip_deg":          sec.DipDeg,
		"rake_deg":         sec.RakeDeg,
		"upper_depth":      sec.UpperDepth,
		"lower_depth":      sec.LowerDepth,
		"slip_rate":        sec.SlipRate,
		"slip_rate_stddev": sec.SlipRateStdDev,
	}
}

// SectionsGeoJSON renders aggregated sections as trace line features
// carrying their statistics.
func SectionsGeoJSON(sections []model.AggregatedSection) FeatureCollection {
	fc := newCollection(len(sections))
	for _, agg := range sections {
		props := sectionProperties(agg.Section)
		props["rupture_count"] = agg.RuptureCount
		props["magnitude_min"] = agg.MagnitudeMin
		props["magnitude_max"] = agg.MagnitudeMax
		props["magnitude_mean"] = agg.MagnitudeMean
		props["rate_weighted_mean_sum"] = agg.RateSum
		props["rate_weighted_mean_min"] = agg.RateMin
		props["rate_weighted_mean_max"] = agg.RateMax
		props["rate_weighted_mean_mean"] = agg.RateMean

		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   lineString(agg.Section.Trace),
			Properties: props,
		})
	}
	return fc
}

// RuptureGeoJSON renders the section traces of one rupture.
func RuptureGeoJSON(table Table, ruptureIndex int) FeatureCollection {
	indices := table.SectionsForRupture(ruptureIndex)
	fc := newCollection(len(indices))
	for _, idx := range indices {
		sec, ok := table.Section(idx)
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   lineString(sec.Trace),
			Properties: sectionProperties(sec),
		})
	}
	return fc
}

// LocationsGeoJSON renders a circle of radiusKm around each location.
func LocationsGeoJSON(locations []model.Location, radiusKm int) FeatureCollection {
	fc := newCollection(len(locations))
	for _, loc := range locations {
		circle := geometry.NewCircle(loc.Latitude, loc.Longitude, float64(radiusKm))
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   loc.ID,
			Geometry: Geometry{
				Type:        "Polygon",
				Coordinates: [][]model.LonLat{circle.Ring()},
			},
			Properties: map[string]interface{}{
				"location_id": loc.ID,
				"name":        loc.Name,
				"latitude":    loc.Latitude,
				"longitude":   loc.Longitude,
				"radius_km":   radiusKm,
			},
		})
	}
	return fc
}
