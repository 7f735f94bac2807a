// Package units provides shared constants and conversions for speed units
package units

import "math"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// MPSToKMPHFactor converts metres per second to kilometres per hour.
// Map speed limits and localization velocities are both in m/s.
const MPSToKMPHFactor = 3.6

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// MPSToKMPH converts a speed in m/s to km/h.
func MPSToKMPH(speedMPS float64) float64 {
	return speedMPS * MPSToKMPHFactor
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return MPSToKMPH(speedMPS)
	default:
		return speedMPS
	}
}

// SpeedFromVelocity returns the planar speed (m/s) of a velocity vector.
// The vertical component is ignored.
func SpeedFromVelocity(vx, vy float64) float64 {
	return math.Hypot(vx, vy)
}

// Round rounds v to the given number of decimal places.
// Negative decimals are treated as zero.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
