package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/drivecheck/internal/grading"
	"github.com/banshee-data/drivecheck/internal/timeutil"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("grading run not found")

// RunStatus is the lifecycle state of a grading run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// GradingRun is one persisted grading pass over a drivelog. Minimum values
// are nil when the pass recorded no sample.
type GradingRun struct {
	RunID               string          `json:"run_id"`
	RecordPath          string          `json:"record_path"`
	MapPath             string          `json:"map_path,omitempty"`
	Status              RunStatus       `json:"status"`
	Error               string          `json:"error,omitempty"`
	CreatedAt           int64           `json:"created_at"`
	CompletedAt         int64           `json:"completed_at,omitempty"`
	MinSpeedMargin      *float64        `json:"min_speed_margin"`
	MinBoundaryDistance *float64        `json:"min_boundary_distance"`
	LocalizationSteps   int             `json:"localization_steps"`
	GradedSteps         int             `json:"graded_steps"`
	SpeedingSteps       int             `json:"speeding_steps"`
	OffRoadSamples      int             `json:"off_road_samples"`
	ParamsJSON          json.RawMessage `json:"params_json,omitempty"`
	SummaryJSON         json.RawMessage `json:"summary_json,omitempty"`
}

// RunLane is a lane traveled during a run.
type RunLane struct {
	RunID         string  `json:"run_id"`
	LaneID        string  `json:"lane_id"`
	SpeedLimitKmh float64 `json:"speed_limit_kmph"`
}

// RunStore persists grading runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses wall-clock time.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// StartRun inserts a running row for recordPath. params, when not nil, is
// stored as JSON.
func (s *RunStore) StartRun(recordPath, mapPath string, params interface{}) (*GradingRun, error) {
	run := &GradingRun{
		RunID:      uuid.New().String(),
		RecordPath: recordPath,
		MapPath:    mapPath,
		Status:     RunStatusRunning,
		CreatedAt:  s.clock.Now().UnixNano(),
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		run.ParamsJSON = data
	}

	_, err := s.db.Exec(`
		INSERT INTO grading_runs (run_id, record_path, map_path, status, created_at, params_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.RecordPath, nullString(run.MapPath), string(run.Status), run.CreatedAt,
		nullString(string(run.ParamsJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert grading run: %w", err)
	}
	return run, nil
}

// CompleteRun stores the summary of a finished run and its traveled lanes.
func (s *RunStore) CompleteRun(runID string, sum *grading.Summary) error {
	if sum == nil {
		return fmt.Errorf("complete run %s: nil summary", runID)
	}
	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE grading_runs
		SET status = ?, completed_at = ?, min_speed_margin = ?, min_boundary_distance = ?,
		    localization_steps = ?, graded_steps = ?, speeding_steps = ?, off_road_samples = ?,
		    summary_json = ?, error = NULL
		WHERE run_id = ?`,
		string(RunStatusCompleted), s.clock.Now().UnixNano(),
		nullFloat(sum.MinSpeedMargin), nullFloat(sum.MinBoundaryDistance),
		sum.LocalizationSteps, sum.GradedSteps, sum.SpeedingSteps, sum.OffRoadSamples,
		string(summaryJSON), runID,
	)
	if err != nil {
		return fmt.Errorf("update grading run: %w", err)
	}
	if err := requireOneRow(res, runID); err != nil {
		return err
	}

	for _, l := range sum.TraveledLanes {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO grading_run_lanes (run_id, lane_id, speed_limit_kmph)
			VALUES (?, ?, ?)`, runID, l.ID, l.SpeedLimitKmh); err != nil {
			return fmt.Errorf("insert run lane %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grading run: %w", err)
	}
	return nil
}

// FailRun marks a run as failed with runErr's message.
func (s *RunStore) FailRun(runID string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.Exec(`
		UPDATE grading_runs SET status = ?, completed_at = ?, error = ? WHERE run_id = ?`,
		string(RunStatusFailed), s.clock.Now().UnixNano(), msg, runID,
	)
	if err != nil {
		return fmt.Errorf("update grading run: %w", err)
	}
	return requireOneRow(res, runID)
}

const runColumns = `
	run_id, record_path, map_path, status, error, created_at, completed_at,
	min_speed_margin, min_boundary_distance,
	localization_steps, graded_steps, speeding_steps, off_road_samples,
	params_json, summary_json`

// GetRun returns a run by id.
func (s *RunStore) GetRun(runID string) (*GradingRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM grading_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan grading run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (s *RunStore) ListRuns(limit int) ([]*GradingRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+`
		FROM grading_runs
		ORDER BY created_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query grading runs: %w", err)
	}
	defer rows.Close()

	var runs []*GradingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grading run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunLanes returns the lanes traveled in a run ordered by lane id.
func (s *RunStore) ListRunLanes(runID string) ([]RunLane, error) {
	rows, err := s.db.Query(`
		SELECT run_id, lane_id, speed_limit_kmph
		FROM grading_run_lanes
		WHERE run_id = ?
		ORDER BY lane_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run lanes: %w", err)
	}
	defer rows.Close()

	var lanes []RunLane
	for rows.Next() {
		var l RunLane
		if err := rows.Scan(&l.RunID, &l.LaneID, &l.SpeedLimitKmh); err != nil {
			return nil, fmt.Errorf("scan run lane: %w", err)
		}
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*GradingRun, error) {
	var (
		run                         GradingRun
		status                      string
		mapPath, errMsg             sql.NullString
		paramsStr, summaryStr       sql.NullString
		completedAt                 sql.NullInt64
		minSpeedMargin, minBoundary sql.NullFloat64
	)
	err := row.Scan(
		&run.RunID, &run.RecordPath, &mapPath, &status, &errMsg, &run.CreatedAt, &completedAt,
		&minSpeedMargin, &minBoundary,
		&run.LocalizationSteps, &run.GradedSteps, &run.SpeedingSteps, &run.OffRoadSamples,
		&paramsStr, &summaryStr,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.MapPath = mapPath.String
	run.Error = errMsg.String
	run.CompletedAt = completedAt.Int64
	if minSpeedMargin.Valid {
		v := minSpeedMargin.Float64
		run.MinSpeedMargin = &v
	}
	if minBoundary.Valid {
		v := minBoundary.Float64
		run.MinBoundaryDistance = &v
	}
	if paramsStr.Valid {
		run.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	if summaryStr.Valid {
		run.SummaryJSON = json.RawMessage(summaryStr.String)
	}
	return &run, nil
}

func requireOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// nullString maps "" to NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat maps the infinite "no sample" sentinel to NULL.
func nullFloat(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
