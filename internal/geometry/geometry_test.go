package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNS-Science/solvis-query/internal/model"
)

// Wellington
const (
	wlgLat = -41.3
	wlgLon = 174.78
)

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, DistanceKm(wlgLat, wlgLon, wlgLat, wlgLon), 1e-9)
	// one degree of latitude is about 111 km
	assert.InDelta(t, 111.2, DistanceKm(-41, 174, -42, 174), 0.5)
}

func TestCircle_Contains(t *testing.T) {
	c := NewCircle(wlgLat, wlgLon, 10)

	assert.True(t, c.ContainsLonLat(model.LonLat{wlgLon, wlgLat}))
	// ~5.5 km north
	assert.True(t, c.ContainsLonLat(model.LonLat{wlgLon, wlgLat + 0.05}))
	// ~22 km north
	assert.False(t, c.ContainsLonLat(model.LonLat{wlgLon, wlgLat + 0.2}))
}

func TestCircle_IntersectsTrace(t *testing.T) {
	c := NewCircle(wlgLat, wlgLon, 10)

	tests := []struct {
		name  string
		trace []model.LonLat
		want  bool
	}{
		{"empty", nil, false},
		{"vertex inside", []model.LonLat{{wlgLon, wlgLat}, {wlgLon + 1, wlgLat + 1}}, true},
		{
			"segment passes through with both ends outside",
			[]model.LonLat{{wlgLon - 0.5, wlgLat}, {wlgLon + 0.5, wlgLat}},
			true,
		},
		{"far away", []model.LonLat{{170.5, -45.9}, {170.6, -45.8}}, false},
		{
			"parallel segment outside the radius",
			[]model.LonLat{{wlgLon - 0.5, wlgLat + 0.3}, {wlgLon + 0.5, wlgLat + 0.3}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IntersectsTrace(tt.trace))
		})
	}
}

func TestCircle_LargerRadiusCoversMore(t *testing.T) {
	trace := []model.LonLat{{wlgLon, wlgLat + 0.3}, {wlgLon + 0.1, wlgLat + 0.35}}
	assert.False(t, NewCircle(wlgLat, wlgLon, 10).IntersectsTrace(trace))
	assert.True(t, NewCircle(wlgLat, wlgLon, 50).IntersectsTrace(trace))
}

func TestCircle_Ring(t *testing.T) {
	c := NewCircleWithVertices(wlgLat, wlgLon, 10, 8)
	ring := c.Ring()

	require.Len(t, ring, 9)
	assert.Equal(t, ring[0], ring[8])
	for _, v := range ring {
		assert.InDelta(t, 10, DistanceKm(wlgLat, wlgLon, v[1], v[0]), 0.05)
	}
}
