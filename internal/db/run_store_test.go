package db

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drivecheck/internal/grading"
	"github.com/banshee-data/drivecheck/internal/timeutil"
)

func newTestStore(t *testing.T) (*RunStore, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewRunStore(newTestDB(t).DB, clock), clock
}

func TestRunStore_Lifecycle(t *testing.T) {
	store, clock := newTestStore(t)

	run, err := store.StartRun("/logs/a.drivelog", "/maps/town.yaml", map[string]float64{"warmup_secs": 5})
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Equal(t, "/maps/town.yaml", got.MapPath)
	assert.JSONEq(t, `{"warmup_secs":5}`, string(got.ParamsJSON))
	assert.Nil(t, got.MinSpeedMargin)
	assert.Zero(t, got.CompletedAt)

	clock.Advance(3 * time.Second)
	sum := &grading.Summary{
		Record:              "a.drivelog",
		TraveledLanes:       []grading.TraveledLane{{ID: "L2", SpeedLimitKmh: 54}, {ID: "L1", SpeedLimitKmh: 36}},
		MinSpeedMargin:      -4.5,
		MinBoundaryDistance: math.Inf(1),
		MinCenterDistance:   math.Inf(1),
		LocalizationSteps:   100,
		GradedSteps:         90,
		SpeedingSteps:       3,
	}
	require.NoError(t, store.CompleteRun(run.RunID, sum))

	got, err = store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, run.CreatedAt+int64(3*time.Second), got.CompletedAt)
	require.NotNil(t, got.MinSpeedMargin)
	assert.Equal(t, -4.5, *got.MinSpeedMargin)
	assert.Nil(t, got.MinBoundaryDistance)
	assert.Equal(t, 90, got.GradedSteps)
	assert.Equal(t, 3, got.SpeedingSteps)

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(got.SummaryJSON, &stored))
	assert.Nil(t, stored["min_boundary_distance"])

	lanes, err := store.ListRunLanes(run.RunID)
	require.NoError(t, err)
	want := []RunLane{
		{RunID: run.RunID, LaneID: "L1", SpeedLimitKmh: 36},
		{RunID: run.RunID, LaneID: "L2", SpeedLimitKmh: 54},
	}
	if diff := cmp.Diff(want, lanes); diff != "" {
		t.Errorf("lanes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_FailRun(t *testing.T) {
	store, _ := newTestStore(t)

	run, err := store.StartRun("/logs/b.drivelog", "", nil)
	require.NoError(t, err)
	require.NoError(t, store.FailRun(run.RunID, errors.New("map inconsistency: lane \"x\"")))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "map inconsistency")
	assert.Empty(t, got.MapPath)
	assert.Nil(t, got.ParamsJSON)

	lanes, err := store.ListRunLanes(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, lanes)
}

func TestRunStore_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(store.FailRun("nope", nil), ErrRunNotFound))
	assert.True(t, errors.Is(store.CompleteRun("nope", &grading.Summary{}), ErrRunNotFound))
	assert.Error(t, store.CompleteRun("nope", nil))
}

func TestRunStore_ListRuns(t *testing.T) {
	store, clock := newTestStore(t)

	var ids []string
	for _, p := range []string{"one", "two", "three"} {
		run, err := store.StartRun(p, "", nil)
		require.NoError(t, err)
		ids = append(ids, run.RunID)
		clock.Advance(time.Minute)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, "one", runs[2].RecordPath)

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "two", runs[1].RecordPath)
}
