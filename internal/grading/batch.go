package grading

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/drivecheck/internal/monitoring"
	"github.com/banshee-data/drivecheck/internal/record"
)

// Result is the outcome of grading one drivelog.
type Result struct {
	Path    string
	Summary *Summary
	Err     error
	Elapsed time.Duration
}

// GradeFile grades the drivelog at path.
func GradeFile(ctx context.Context, idx LaneIndex, opts Options, path string) (*Summary, error) {
	r, err := record.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	defer r.Close()

	name := filepath.Base(path)
	sess := NewSession(name, idx, opts, monitoring.NewLogger(name, opts.Verbose))
	return sess.Run(ctx, r)
}

// GradeAll grades every path with at most workers sessions in flight.
// Sessions share only the read-only index. A failed session records its
// error in its Result and does not stop the others. Results keep the
// order of paths.
func GradeAll(ctx context.Context, idx LaneIndex, opts Options, paths []string, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			start := time.Now()
			sum, err := GradeFile(ctx, idx, opts, path)
			results[i] = Result{Path: path, Summary: sum, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				monitoring.Logf("grading %s failed: %v", path, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Combine folds the successful results into one summary: the union of
// traveled lanes, the minimum of each minimum, summed counters and the
// concatenated samples. It also returns the number of failed results.
func Combine(results []Result) (*Summary, int) {
	out := &Summary{
		Record:              "combined",
		MinSpeedMargin:      math.Inf(1),
		MinBoundaryDistance: math.Inf(1),
		MinCenterDistance:   math.Inf(1),
	}
	lanes := make(map[string]float64)
	failed := 0
	haveTime := false

	for _, r := range results {
		if r.Err != nil || r.Summary == nil {
			failed++
			continue
		}
		s := r.Summary
		for _, l := range s.TraveledLanes {
			lanes[l.ID] = l.SpeedLimitKmh
		}
		out.MinSpeedMargin = math.Min(out.MinSpeedMargin, s.MinSpeedMargin)
		out.MinBoundaryDistance = math.Min(out.MinBoundaryDistance, s.MinBoundaryDistance)
		out.MinCenterDistance = math.Min(out.MinCenterDistance, s.MinCenterDistance)

		out.LocalizationSteps += s.LocalizationSteps
		out.GradedSteps += s.GradedSteps
		out.OffLaneSteps += s.OffLaneSteps
		out.SpeedingSteps += s.SpeedingSteps
		out.OffRoadSamples += s.OffRoadSamples
		out.RoutingUpdates += s.RoutingUpdates
		out.MalformedMessages += s.MalformedMessages

		if s.LocalizationSteps+s.RoutingUpdates > 0 {
			if !haveTime || s.FirstTimestamp < out.FirstTimestamp {
				out.FirstTimestamp = s.FirstTimestamp
			}
			if !haveTime || s.LastTimestamp > out.LastTimestamp {
				out.LastTimestamp = s.LastTimestamp
			}
			haveTime = true
		}

		out.Margins = append(out.Margins, s.Margins...)
		out.Distances = append(out.Distances, s.Distances...)
		out.Speeds = append(out.Speeds, s.Speeds...)
	}

	out.TraveledLanes = make([]TraveledLane, 0, len(lanes))
	for id, limit := range lanes {
		out.TraveledLanes = append(out.TraveledLanes, TraveledLane{ID: id, SpeedLimitKmh: limit})
	}
	sort.Slice(out.TraveledLanes, func(i, j int) bool { return out.TraveledLanes[i].ID < out.TraveledLanes[j].ID })
	out.Speed = computeSpeedStats(out.Speeds)
	return out, failed
}
