package grading

import (
	"math"

	"github.com/banshee-data/drivecheck/internal/units"
)

// SpeedMarginTracker keeps the running minimum of limit minus speed.
type SpeedMarginTracker struct {
	min      float64
	margins  []float64
	speeding int
}

// NewSpeedMarginTracker returns a tracker with no samples; Min is +Inf.
func NewSpeedMarginTracker() *SpeedMarginTracker {
	return &SpeedMarginTracker{min: math.Inf(1)}
}

// Margin returns limit minus speed, both converted from m/s to km/h.
func Margin(limitMPS, vx, vy float64) (margin, speedKmh, limitKmh float64) {
	speedKmh = units.MPSToKMPH(units.SpeedFromVelocity(vx, vy))
	limitKmh = units.MPSToKMPH(limitMPS)
	return limitKmh - speedKmh, speedKmh, limitKmh
}

// Observe offers one margin. It is counted only when the lane has a limit
// or the lane was picked from several candidates, since a zero limit on an
// unambiguous lane means the map has no limit there.
func (t *SpeedMarginTracker) Observe(margin, limitKmh float64, candidates int) bool {
	if limitKmh == 0 && candidates <= 1 {
		return false
	}
	t.margins = append(t.margins, margin)
	if margin < 0 {
		t.speeding++
	}
	if margin < t.min {
		t.min = margin
	}
	return true
}

// Min returns the smallest counted margin, or +Inf when none was counted.
func (t *SpeedMarginTracker) Min() float64 {
	return t.min
}

// Speeding returns the number of counted margins below zero.
func (t *SpeedMarginTracker) Speeding() int {
	return t.speeding
}

// Margins returns a copy of the counted margins in step order.
func (t *SpeedMarginTracker) Margins() []float64 {
	out := make([]float64, len(t.margins))
	copy(out, t.margins)
	return out
}
