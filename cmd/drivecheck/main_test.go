package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drivecheck/internal/db"
	"github.com/banshee-data/drivecheck/internal/hdmap"
	"github.com/banshee-data/drivecheck/internal/record"
	"github.com/banshee-data/drivecheck/internal/testutil"
)

func writeFixtures(t *testing.T) (mapPath string, logs []string) {
	t.Helper()
	mapPath = filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, hdmap.WriteMap(mapPath, testutil.TwoLaneMap()))

	ok := append([]record.Message{testutil.Plan(0, "L1")}, testutil.Drive(0, 12, 10, 0, 5)...)
	bad := append([]record.Message{testutil.Plan(0, "ghost")}, testutil.Drive(0, 12, 10, 0, 5)...)
	return mapPath, []string{
		testutil.WriteDrivelog(t, "ok", ok),
		testutil.WriteDrivelog(t, "bad", bad),
	}
}

func TestRun_Grade(t *testing.T) {
	mapPath, logs := writeFixtures(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"grade", "-map", mapPath, logs[0]}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "lane id: L1\t\tspeed limit: 36.0")
	assert.Contains(t, out, "min_speed = 18.000")
	assert.Contains(t, out, "min_dist (to boundary) = 0.695")
	assert.Contains(t, out, "speed kmph: min 18.0")

	stdout.Reset()
	code = run([]string{"grade", "-map", mapPath, "-units", "mps", logs[0]}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "speed mps: min 5.0")
	assert.Contains(t, stdout.String(), "speed limit: 36.0")
}

func TestRun_GradeWithFailureAndDB(t *testing.T) {
	mapPath, logs := writeFixtures(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	code := run(append([]string{"grade", "-map", mapPath, "-db", dbPath, "-json", "-workers", "2"}, logs...), &stdout, &stderr)
	assert.Equal(t, 1, code)

	var got struct {
		Results []struct {
			Path  string `json:"path"`
			RunID string `json:"run_id"`
			Error string `json:"error"`
		} `json:"results"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, 1, got.Failed)
	assert.Empty(t, got.Results[0].Error)
	assert.Contains(t, got.Results[1].Error, "map inconsistency")
	assert.NotEmpty(t, got.Results[0].RunID)

	stdout.Reset()
	require.Equal(t, 0, run([]string{"runs", "-db", dbPath}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "completed")
	assert.Contains(t, stdout.String(), "failed")
	assert.Contains(t, stdout.String(), "lane L1  36.0 km/h")
}

func TestRun_GradeDuplicatePathWithDB(t *testing.T) {
	mapPath, logs := writeFixtures(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	code := run([]string{"grade", "-map", mapPath, "-db", dbPath, "-json", logs[0], logs[0]}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var got struct {
		Results []struct {
			RunID string `json:"run_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	require.Len(t, got.Results, 2)
	assert.NotEqual(t, got.Results[0].RunID, got.Results[1].RunID)

	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	store := db.NewRunStore(database.DB, nil)

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, db.RunStatusCompleted, r.Status, r.RunID)
		assert.NotNil(t, r.MinSpeedMargin)
		assert.NotEmpty(t, r.SummaryJSON)
	}
}

func TestAbortRuns(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer database.Close()
	store := db.NewRunStore(database.DB, nil)

	var ids []string
	for _, p := range []string{"a.drivelog", "b.drivelog"} {
		r, err := store.StartRun(p, "map.yaml", nil)
		require.NoError(t, err)
		ids = append(ids, r.RunID)
	}

	abortRuns(store, ids, errors.New("disk full"))

	for _, id := range ids {
		r, err := store.GetRun(id)
		require.NoError(t, err)
		assert.Equal(t, db.RunStatusFailed, r.Status)
		assert.Contains(t, r.Error, "disk full")
	}
}

func TestRun_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"frobnicate"}, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"grade", "x.drivelog"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-map is required")
	assert.Equal(t, 1, run([]string{"grade", "-map", "m.yaml"}, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"runs"}, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"grade", "-map", "m.yaml", "-units", "furlongs", "x.drivelog"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "invalid -units")
}

func TestRun_MigrateAndVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"migrate", "-db", dbPath, "up"}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "Current version: 2")

	stdout.Reset()
	require.Equal(t, 0, run([]string{"version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "drivecheck")
}
