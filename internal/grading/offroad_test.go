package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type step struct {
	now, dist  float64
	wantState  OffRoadState
	wantSample float64
	wantRecord bool
}

func runSteps(t *testing.T, d *OffRoadDetector, steps []step) {
	t.Helper()
	for i, s := range steps {
		sample, rec := d.Observe("L1", s.now, s.dist)
		assert.Equal(t, s.wantState, d.State(), "step %d state", i)
		assert.Equal(t, s.wantRecord, rec, "step %d record", i)
		if rec {
			assert.Equal(t, s.wantSample, sample, "step %d sample", i)
		}
	}
}

func TestOffRoadDetector(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "clear samples distance",
			steps: []step{
				{now: 0, dist: 0.7, wantState: OffRoadClear, wantSample: 0.7, wantRecord: true},
				{now: 1, dist: 0.4, wantState: OffRoadClear, wantSample: 0.4, wantRecord: true},
			},
		},
		{
			name: "instant touch is noise",
			steps: []step{
				{now: 0, dist: 0, wantState: OffRoadCandidate},
				{now: 1, dist: 0.5, wantState: OffRoadClear},
				{now: 2, dist: 0.5, wantState: OffRoadClear, wantSample: 0.5, wantRecord: true},
			},
		},
		{
			name: "touch below threshold",
			steps: []step{
				{now: 10, dist: 0, wantState: OffRoadCandidate},
				{now: 12, dist: 0, wantState: OffRoadCandidate},
				{now: 14.9, dist: 0, wantState: OffRoadCandidate},
				{now: 15.5, dist: 1, wantState: OffRoadClear},
			},
		},
		{
			name: "sustained touch confirms",
			steps: []step{
				{now: 10, dist: 0, wantState: OffRoadCandidate},
				{now: 13, dist: 0, wantState: OffRoadCandidate},
				{now: 15, dist: 0, wantState: OffRoadConfirmed, wantSample: 0, wantRecord: true},
				{now: 16, dist: 0, wantState: OffRoadConfirmed, wantSample: 0, wantRecord: true},
				{now: 17, dist: 0.3, wantState: OffRoadClear},
				{now: 18, dist: 0.3, wantState: OffRoadClear, wantSample: 0.3, wantRecord: true},
			},
		},
		{
			name: "late sample without touch resets",
			steps: []step{
				{now: 0, dist: 0, wantState: OffRoadCandidate},
				{now: 9, dist: 0.2, wantState: OffRoadClear},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSteps(t, NewOffRoadDetector(5, 0), tt.steps)
		})
	}
}

func TestOffRoadDetector_Candidate(t *testing.T) {
	d := NewOffRoadDetector(5, 0)
	_, _, ok := d.Candidate()
	assert.False(t, ok)

	d.Observe("L7", 3, 0)
	lane, start, ok := d.Candidate()
	assert.True(t, ok)
	assert.Equal(t, "L7", lane)
	assert.Equal(t, 3.0, start)

	d.Observe("L7", 4, 1)
	lane, start, ok = d.Candidate()
	assert.False(t, ok)
	assert.Empty(t, lane)
	assert.Zero(t, start)
}

func TestOffRoadDetector_Epsilon(t *testing.T) {
	strict := NewOffRoadDetector(5, 0)
	_, rec := strict.Observe("L1", 0, 0.01)
	assert.True(t, rec)
	assert.Equal(t, OffRoadClear, strict.State())

	loose := NewOffRoadDetector(5, 0.05)
	_, rec = loose.Observe("L1", 0, 0.01)
	assert.False(t, rec)
	assert.Equal(t, OffRoadCandidate, loose.State())

	sample, rec := loose.Observe("L1", 5, 0.04)
	assert.True(t, rec)
	assert.Equal(t, 0.0, sample)
	assert.Equal(t, OffRoadConfirmed, loose.State())
}

func TestSpeedMarginTracker(t *testing.T) {
	tr := NewSpeedMarginTracker()
	assert.True(t, tr.Min() > 1e300)

	assert.False(t, tr.Observe(-20, 0, 1), "zero limit single candidate")
	assert.True(t, tr.Observe(-20, 0, 2), "zero limit ambiguous")
	assert.True(t, tr.Observe(5, 50, 1))
	assert.True(t, tr.Observe(-3, 50, 1))

	assert.Equal(t, -20.0, tr.Min())
	assert.Equal(t, 2, tr.Speeding())
	assert.Equal(t, []float64{-20, 5, -3}, tr.Margins())
}

func TestMargin(t *testing.T) {
	margin, speed, limit := Margin(10, 3, 4)
	assert.InDelta(t, 18.0, speed, 1e-9)
	assert.InDelta(t, 36.0, limit, 1e-9)
	assert.InDelta(t, 18.0, margin, 1e-9)
}
