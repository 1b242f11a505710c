// Package geometry builds location radius polygons and tests them against
// fault-section traces on the sphere.
package geometry

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/GNS-Science/solvis-query/internal/model"
)

const (
	// EarthRadiusKm is the mean Earth radius
	EarthRadiusKm = 6371.0088

	// DefaultCircleVertices approximates a radius circle as a regular polygon
	DefaultCircleVertices = 64
)

// Circle is a location radius polygon.
type Circle struct {
	loop  *s2.Loop
	bound s2.Rect
}

// NewCircle returns the polygon of all points within radiusKm of (lat, lon).
func NewCircle(lat, lon, radiusKm float64) *Circle {
	return NewCircleWithVertices(lat, lon, radiusKm, DefaultCircleVertices)
}

// NewCircleWithVertices is NewCircle with an explicit polygon resolution.
func NewCircleWithVertices(lat, lon, radiusKm float64, vertices int) *Circle {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	loop := s2.RegularLoop(center, s1.Angle(radiusKm/EarthRadiusKm), vertices)
	return &Circle{loop: loop, bound: loop.RectBound()}
}

// ContainsLonLat reports whether the point lies inside the polygon.
func (c *Circle) ContainsLonLat(p model.LonLat) bool {
	return c.loop.ContainsPoint(toPoint(p))
}

// IntersectsTrace reports whether any part of the trace polyline lies
// inside or crosses the polygon boundary.
func (c *Circle) IntersectsTrace(trace []model.LonLat) bool {
	if len(trace) == 0 {
		return false
	}

	bound := s2.EmptyRect()
	points := make([]s2.Point, len(trace))
	for i, v := range trace {
		ll := s2.LatLngFromDegrees(v[1], v[0])
		bound = bound.AddPoint(ll)
		points[i] = s2.PointFromLatLng(ll)
	}
	if !c.bound.Intersects(bound) {
		return false
	}

	for _, p := range points {
		if c.loop.ContainsPoint(p) {
			return true
		}
	}

	n := c.loop.NumVertices()
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		for j := 0; j < n; j++ {
			if s2.CrossingSign(a, b, c.loop.Vertex(j), c.loop.Vertex(j+1)) != s2.DoNotCross {
				return true
			}
		}
	}
	return false
}

// Ring returns the closed polygon boundary as lon/lat pairs.
func (c *Circle) Ring() []model.LonLat {
	n := c.loop.NumVertices()
	ring := make([]model.LonLat, 0, n+1)
	for j := 0; j < n; j++ {
		ll := s2.LatLngFromPoint(c.loop.Vertex(j))
		ring = append(ring, model.LonLat{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	if n > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

func toPoint(p model.LonLat) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0]))
}
