// Package testutil provides shared test fixtures: synthetic lane maps,
// message builders and drivelog writers.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/banshee-data/drivecheck/internal/hdmap"
	"github.com/banshee-data/drivecheck/internal/record"
)

// LaneHalfWidth is the half width of fixture lanes in metres.
const LaneHalfWidth = 1.75

// StraightLane returns a lane along +X from x0 to x1 centred on y.
func StraightLane(id string, x0, x1, y, limitMPS float64) hdmap.Lane {
	return hdmap.Lane{
		ID:            id,
		SpeedLimit:    limitMPS,
		LeftBoundary:  orb.LineString{{x0, y + LaneHalfWidth}, {x1, y + LaneHalfWidth}},
		RightBoundary: orb.LineString{{x0, y - LaneHalfWidth}, {x1, y - LaneHalfWidth}},
	}
}

// TwoLaneMap returns two adjacent 1 km lanes: L1 centred on y=0 with a
// 10 m/s limit and L2 centred on y=3.5 with a 15 m/s limit. They share the
// boundary y=1.75.
func TwoLaneMap() *hdmap.Map {
	return &hdmap.Map{
		Name: "two-lane",
		Lanes: []hdmap.Lane{
			StraightLane("L1", 0, 1000, 0, 10),
			StraightLane("L2", 0, 1000, 3.5, 15),
		},
	}
}

// OverlapMap returns lanes A, B and C with identical geometry along y=0,
// x 0..1000, and D beyond them. A has a 10 m/s limit, B 20 m/s and C no
// limit. Every position on y=0 resolves to all three candidates.
func OverlapMap() *hdmap.Map {
	d := StraightLane("D", 1000, 2000, 0, 0)
	return &hdmap.Map{
		Name: "overlap",
		Lanes: []hdmap.Lane{
			StraightLane("A", 0, 1000, 0, 10),
			StraightLane("B", 0, 1000, 0, 20),
			StraightLane("C", 0, 1000, 0, 0),
			d,
		},
	}
}

// MustIndex builds the lane index of m or fails the test.
func MustIndex(t testing.TB, m *hdmap.Map) *hdmap.Index {
	t.Helper()
	idx, err := hdmap.BuildLaneIndex(m, 0)
	if err != nil {
		t.Fatalf("BuildLaneIndex: %v", err)
	}
	return idx
}

// Loc builds a localization message without heading.
func Loc(ts, x, y, vx, vy float64) record.Message {
	return record.LocalizationMessage(record.Localization{
		TimestampSec: ts, X: x, Y: y, VX: vx, VY: vy,
	})
}

// Plan builds a planning message routing over lanes.
func Plan(ts float64, lanes ...string) record.Message {
	return record.PlanningMessage(record.PlanFromLanes(ts, lanes...))
}

// Drive returns localization messages at 1 Hz from t0 for n steps moving
// along +X from x0 at constant speed on the line y.
func Drive(t0 float64, n int, x0, y, speedMPS float64) []record.Message {
	msgs := make([]record.Message, 0, n)
	for i := 0; i < n; i++ {
		ts := t0 + float64(i)
		msgs = append(msgs, Loc(ts, x0+speedMPS*float64(i), y, speedMPS, 0))
	}
	return msgs
}

// WriteDrivelog writes msgs to a drivelog under t.TempDir and returns its
// path.
func WriteDrivelog(t testing.TB, name string, msgs []record.Message) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+record.FileExtension)
	w, err := record.NewWriter(path, "test")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, m := range msgs {
		if err := w.WriteRaw(m.Channel, m.Timestamp, m.Payload); err != nil {
			t.Fatalf("WriteRaw: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}
