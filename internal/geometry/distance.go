package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// orientationEpsilon absorbs rounding in the cross products used for
// segment intersection tests.
const orientationEpsilon = 1e-12

// PointLineDistance returns the shortest distance from p to any of the
// lines. Returns +Inf when lines holds no points.
func PointLineDistance(p orb.Point, lines orb.MultiLineString) float64 {
	best := math.Inf(1)
	for _, ls := range lines {
		switch len(ls) {
		case 0:
			continue
		case 1:
			best = math.Min(best, planar.Distance(p, ls[0]))
		default:
			best = math.Min(best, planar.DistanceFrom(ls, p))
		}
	}
	return best
}

// PolygonLineDistance returns the shortest distance between the polygon's
// outer ring and the lines. The distance is 0 when any line crosses or
// touches the ring, or when any line vertex lies inside the polygon.
// Returns +Inf when either input is empty.
func PolygonLineDistance(poly orb.Polygon, lines orb.MultiLineString) float64 {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return math.Inf(1)
	}
	ring := poly[0]

	best := math.Inf(1)
	for _, ls := range lines {
		if len(ls) == 0 {
			continue
		}
		for _, p := range ls {
			if planar.PolygonContains(poly, p) {
				return 0
			}
		}
		for i := 0; i+1 < len(ring); i++ {
			for j := 0; j+1 < len(ls); j++ {
				if segmentsIntersect(ring[i], ring[i+1], ls[j], ls[j+1]) {
					return 0
				}
			}
		}

		// No contact: the closest pair involves a vertex of one shape.
		for _, p := range ls {
			best = math.Min(best, ringDistance(ring, p))
		}
		if len(ls) > 1 {
			for _, p := range ring {
				best = math.Min(best, planar.DistanceFrom(ls, p))
			}
		}
	}
	return best
}

func ringDistance(ring orb.Ring, p orb.Point) float64 {
	best := math.Inf(1)
	for i := 0; i+1 < len(ring); i++ {
		best = math.Min(best, planar.DistanceFromSegment(ring[i], ring[i+1], p))
	}
	return best
}

// segmentsIntersect reports whether segments ab and cd share at least one
// point, including touching endpoints and collinear overlap.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(a, c, b) {
		return true
	}
	if o2 == 0 && onSegment(a, d, b) {
		return true
	}
	if o3 == 0 && onSegment(c, a, d) {
		return true
	}
	if o4 == 0 && onSegment(c, b, d) {
		return true
	}
	return false
}

// orientation returns 1 for counter-clockwise, -1 for clockwise and 0 for
// collinear p, q, r.
func orientation(p, q, r orb.Point) int {
	cross := (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
	switch {
	case cross > orientationEpsilon:
		return 1
	case cross < -orientationEpsilon:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether q lies within the bounding box of pr; callers
// have already established collinearity.
func onSegment(p, q, r orb.Point) bool {
	return q[0] <= math.Max(p[0], r[0]) && q[0] >= math.Min(p[0], r[0]) &&
		q[1] <= math.Max(p[1], r[1]) && q[1] >= math.Min(p[1], r[1])
}
