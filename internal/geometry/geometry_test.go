package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDims = VehicleDims{LengthM: 4, WidthM: 2, BackEdgeToCenterM: 1}

func TestVehicleFootprint(t *testing.T) {
	t.Run("heading east", func(t *testing.T) {
		poly := VehicleFootprint(10, 5, 0, testDims)
		require.Len(t, poly, 1)
		ring := poly[0]
		require.Len(t, ring, 5)
		assert.True(t, ring.Closed())

		b := ring.Bound()
		assert.InDelta(t, 9, b.Min[0], 1e-9)  // 1 m behind the origin
		assert.InDelta(t, 13, b.Max[0], 1e-9) // 3 m ahead
		assert.InDelta(t, 4, b.Min[1], 1e-9)
		assert.InDelta(t, 6, b.Max[1], 1e-9)
		assert.Equal(t, orb.CCW, ring.Orientation())
	})

	t.Run("heading north rotates the box", func(t *testing.T) {
		poly := VehicleFootprint(0, 0, math.Pi/2, testDims)
		b := poly[0].Bound()
		assert.InDelta(t, -1, b.Min[0], 1e-9)
		assert.InDelta(t, 1, b.Max[0], 1e-9)
		assert.InDelta(t, -1, b.Min[1], 1e-9)
		assert.InDelta(t, 3, b.Max[1], 1e-9)
	})

	t.Run("pose origin is inside", func(t *testing.T) {
		poly := VehicleFootprint(3, -2, 0.7, testDims)
		assert.True(t, planar.PolygonContains(poly, orb.Point{3, -2}))
	})
}

func TestHeadingOf(t *testing.T) {
	h := 1.25
	assert.Equal(t, 1.25, HeadingOf(&h, 5, 0))
	assert.InDelta(t, math.Pi/2, HeadingOf(nil, 0, 3), 1e-12)
	assert.Equal(t, 0.0, HeadingOf(nil, 0, 0))
}

func TestLanePolygon(t *testing.T) {
	left := orb.LineString{{0, 2}, {10, 2}}
	right := orb.LineString{{0, -2}, {10, -2}}

	poly := LanePolygon(left, right)
	require.Len(t, poly, 1)
	assert.True(t, poly[0].Closed())
	assert.Len(t, poly[0], 5)
	assert.True(t, planar.PolygonContains(poly, orb.Point{5, 0}))
	assert.True(t, planar.PolygonContains(poly, orb.Point{5, 2}), "boundary counts as inside")
	assert.False(t, planar.PolygonContains(poly, orb.Point{5, 2.5}))
}

func TestPointLineDistance(t *testing.T) {
	lines := orb.MultiLineString{
		{{0, 2}, {10, 2}},
		{{0, -2}, {10, -2}},
	}
	assert.InDelta(t, 1.5, PointLineDistance(orb.Point{5, 0.5}, lines), 1e-12)
	assert.InDelta(t, 0, PointLineDistance(orb.Point{3, 2}, lines), 1e-12)
	assert.InDelta(t, 5, PointLineDistance(orb.Point{5, 5}, orb.MultiLineString{{{5, 0}}}), 1e-12)
	assert.True(t, math.IsInf(PointLineDistance(orb.Point{0, 0}, nil), 1))
}

func TestPolygonLineDistance(t *testing.T) {
	lane := orb.MultiLineString{
		{{-50, 2}, {50, 2}},
		{{-50, -2}, {50, -2}},
	}

	tests := []struct {
		name string
		y    float64
		want float64
	}{
		// Footprint spans y±1 around the pose.
		{"centred in lane", 0, 1},
		{"offset toward left line", 0.5, 0.5},
		{"touching left line", 1, 0},
		{"straddling left line", 1.5, 0},
		{"fully outside beyond left line", 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly := VehicleFootprint(0, tt.y, 0, testDims)
			assert.InDelta(t, tt.want, PolygonLineDistance(poly, lane), 1e-9)
		})
	}

	t.Run("line entirely inside footprint", func(t *testing.T) {
		poly := VehicleFootprint(0, 0, 0, testDims)
		inner := orb.MultiLineString{{{0, 0}, {0.5, 0}}}
		assert.Equal(t, 0.0, PolygonLineDistance(poly, inner))
	})

	t.Run("line end beyond footprint corner", func(t *testing.T) {
		poly := VehicleFootprint(0, 0, 0, testDims)
		short := orb.MultiLineString{{{6, 0}, {10, 0}}}
		assert.InDelta(t, 3, PolygonLineDistance(poly, short), 1e-9)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.True(t, math.IsInf(PolygonLineDistance(nil, lane), 1))
		poly := VehicleFootprint(0, 0, 0, testDims)
		assert.True(t, math.IsInf(PolygonLineDistance(poly, nil), 1))
	})
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d orb.Point
		want       bool
	}{
		{"crossing", orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}, true},
		{"touching endpoint", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 0}, orb.Point{1, 1}, true},
		{"collinear overlap", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{3, 0}, true},
		{"collinear disjoint", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{3, 0}, false},
		{"parallel", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1}, orb.Point{1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentsIntersect(tt.a, tt.b, tt.c, tt.d))
		})
	}
}
