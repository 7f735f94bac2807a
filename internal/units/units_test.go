package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"uppercase MPS", "MPS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestMPSToKMPH(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		expected float64
	}{
		{"zero", 0, 0},
		{"1 m/s", 1, 3.6},
		{"city 13.89 m/s", 13.89, 50.004},
		{"negative passes through", -2, -7.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MPSToKMPH(tt.speedMPS); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("MPSToKMPH(%f) = %f, want %f", tt.speedMPS, got, tt.expected)
			}
		})
	}
}

func TestConvertSpeed(t *testing.T) {
	if got := ConvertSpeed(10, KMPH); math.Abs(got-36) > 1e-9 {
		t.Errorf("ConvertSpeed(10, kmph) = %f, want 36", got)
	}
	if got := ConvertSpeed(1, MPH); math.Abs(got-2.2369362920544) > 1e-10 {
		t.Errorf("ConvertSpeed(1, mph) = %f", got)
	}
	if got := ConvertSpeed(5, "unknown"); got != 5 {
		t.Errorf("unknown units should fall back to m/s, got %f", got)
	}
}

func TestSpeedFromVelocity(t *testing.T) {
	tests := []struct {
		name   string
		vx, vy float64
		want   float64
	}{
		{"stationary", 0, 0, 0},
		{"pure x", 3, 0, 3},
		{"3-4-5", 3, 4, 5},
		{"negative components", -3, -4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeedFromVelocity(tt.vx, tt.vy); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SpeedFromVelocity(%f, %f) = %f, want %f", tt.vx, tt.vy, got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	if got := Round(50.00400000001, 3); got != 50.004 {
		t.Errorf("Round = %v, want 50.004", got)
	}
	if got := Round(12.6, -1); got != 13 {
		t.Errorf("Round with negative decimals = %v, want 13", got)
	}
}
