package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// VehicleDims describes the ego vehicle's rectangular footprint relative to
// the pose origin (the rear-axle reference point on most platforms).
type VehicleDims struct {
	LengthM           float64 // Bumper to bumper
	WidthM            float64 // Side to side
	BackEdgeToCenterM float64 // Pose origin to rear bumper
}

// VehicleFootprint returns the footprint polygon of a vehicle at (x, y)
// facing heading (radians, counter-clockwise from +X).
//
// The rectangle extends LengthM-BackEdgeToCenterM ahead of the origin and
// BackEdgeToCenterM behind it, WidthM/2 to each side. The ring is closed and
// counter-clockwise.
func VehicleFootprint(x, y, heading float64, d VehicleDims) orb.Polygon {
	front := d.LengthM - d.BackEdgeToCenterM
	back := -d.BackEdgeToCenterM
	half := d.WidthM / 2

	cosH, sinH := math.Cos(heading), math.Sin(heading)
	corner := func(along, across float64) orb.Point {
		// Project vehicle-frame offsets onto the heading axis and its
		// perpendicular [-sin, cos].
		return orb.Point{
			x + along*cosH - across*sinH,
			y + along*sinH + across*cosH,
		}
	}

	ring := orb.Ring{
		corner(front, -half),
		corner(front, half),
		corner(back, half),
		corner(back, -half),
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// HeadingOf picks the heading for a footprint: the reported pose heading
// when present, else the direction of travel, else 0 for a stationary
// vehicle with no heading.
func HeadingOf(heading *float64, vx, vy float64) float64 {
	if heading != nil {
		return *heading
	}
	if vx == 0 && vy == 0 {
		return 0
	}
	return math.Atan2(vy, vx)
}

// LanePolygon closes a lane's left and right boundary lines into a polygon:
// the left line in order, then the right line reversed.
func LanePolygon(left, right orb.LineString) orb.Polygon {
	ring := make(orb.Ring, 0, len(left)+len(right)+1)
	ring = append(ring, left...)
	for i := len(right) - 1; i >= 0; i-- {
		ring = append(ring, right[i])
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}
