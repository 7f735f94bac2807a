// Command drivecheck grades recorded drives against a lane map.
//
//	drivecheck grade -map town.yaml [-config cfg.json] [-db runs.db] [-workers N] [-units kmph] [-verbose] [-json] a.drivelog ...
//	drivecheck migrate -db runs.db up|down|status|version N|force N
//	drivecheck runs -db runs.db [-n 20]
//	drivecheck version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/drivecheck/internal/config"
	"github.com/banshee-data/drivecheck/internal/db"
	"github.com/banshee-data/drivecheck/internal/grading"
	"github.com/banshee-data/drivecheck/internal/hdmap"
	"github.com/banshee-data/drivecheck/internal/units"
	"github.com/banshee-data/drivecheck/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "grade":
		var failed bool
		failed, err = runGrade(args[1:], stdout)
		if err == nil && failed {
			return 1
		}
	case "migrate":
		err = runMigrate(args[1:], stdout)
	case "runs":
		err = runRuns(args[1:], stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "drivecheck %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: drivecheck <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  grade     Grade one or more .drivelog recordings")
	fmt.Fprintln(w, "  migrate   Manage the run database schema")
	fmt.Fprintln(w, "  runs      List stored grading runs")
	fmt.Fprintln(w, "  version   Print build information")
}

type gradeOutput struct {
	Path    string           `json:"path"`
	RunID   string           `json:"run_id,omitempty"`
	Error   string           `json:"error,omitempty"`
	Summary *grading.Summary `json:"summary,omitempty"`
}

// runGrade grades every drivelog argument. failed reports whether any
// recording could not be graded.
func runGrade(args []string, stdout io.Writer) (failed bool, err error) {
	fs := flag.NewFlagSet("grade", flag.ContinueOnError)
	mapPath := fs.String("map", "", "lane map file (.yaml, .yml or .json)")
	configPath := fs.String("config", "", "analysis config file (.json, .yaml or .yml)")
	dbPath := fs.String("db", "", "SQLite database for run history (optional)")
	workers := fs.Int("workers", 0, "parallel sessions (0 uses the config value)")
	verbose := fs.Bool("verbose", false, "log per-step diagnostics")
	asJSON := fs.Bool("json", false, "print results as JSON")
	speedUnits := fs.String("units", units.KMPH, "units for vehicle speed statistics (mps, mph, kmph, kph)")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if !units.IsValid(*speedUnits) {
		return false, fmt.Errorf("invalid -units %q, must be one of %v", *speedUnits, units.ValidUnits)
	}
	paths := fs.Args()
	if *mapPath == "" {
		return false, errors.New("-map is required")
	}
	if len(paths) == 0 {
		return false, errors.New("at least one drivelog is required")
	}

	cfg := config.EmptyAnalysisConfig()
	if *configPath != "" {
		if cfg, err = config.LoadAnalysisConfig(*configPath); err != nil {
			return false, err
		}
	}
	if *verbose {
		cfg.Verbose = verbose
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	opts, err := grading.OptionsFromConfig(cfg)
	if err != nil {
		return false, err
	}

	m, err := hdmap.LoadMap(*mapPath)
	if err != nil {
		return false, err
	}
	idx, err := hdmap.BuildLaneIndex(m, cfg.GetGridCellSizeM())
	if err != nil {
		return false, fmt.Errorf("invalid map %s: %w", *mapPath, err)
	}
	log.Printf("loaded map %q: %d lanes", m.Name, idx.Len())

	var store *db.RunStore
	// runIDs[i] is the run row for paths[i]; a path given twice gets two rows.
	runIDs := make([]string, len(paths))
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return false, err
		}
		defer database.Close()
		store = db.NewRunStore(database.DB, nil)
		for i, p := range paths {
			run, err := store.StartRun(p, *mapPath, cfg)
			if err != nil {
				abortRuns(store, runIDs[:i], err)
				return false, err
			}
			runIDs[i] = run.RunID
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := grading.GradeAll(ctx, idx, opts, paths, cfg.GetWorkers())

	outputs := make([]gradeOutput, 0, len(results))
	for i, r := range results {
		out := gradeOutput{Path: r.Path, RunID: runIDs[i], Summary: r.Summary}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		if store != nil {
			if r.Err != nil {
				err = store.FailRun(out.RunID, r.Err)
			} else {
				err = store.CompleteRun(out.RunID, r.Summary)
			}
			if err != nil {
				log.Printf("failed to store run for %s: %v", r.Path, err)
			}
		}
		outputs = append(outputs, out)
	}
	combined, nFailed := grading.Combine(results)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{
			"results":  outputs,
			"combined": combined,
			"failed":   nFailed,
		}); err != nil {
			return false, err
		}
		return nFailed > 0, nil
	}

	for _, out := range outputs {
		fmt.Fprintf(stdout, "== %s ==\n", out.Path)
		if out.Error != "" {
			fmt.Fprintf(stdout, "error: %s\n\n", out.Error)
			continue
		}
		printSummary(stdout, out.Summary, *speedUnits)
	}
	if len(outputs) > 1 {
		fmt.Fprintf(stdout, "== combined (%d graded, %d failed) ==\n", len(outputs)-nFailed, nFailed)
		printSummary(stdout, combined, *speedUnits)
	}
	return nFailed > 0, nil
}

// abortRuns marks already started runs as failed when the batch cannot start.
func abortRuns(store *db.RunStore, runIDs []string, cause error) {
	for _, id := range runIDs {
		if err := store.FailRun(id, fmt.Errorf("batch aborted: %w", cause)); err != nil {
			log.Printf("failed to mark run %s failed: %v", id, err)
		}
	}
}

// printSummary writes the text report. Lane limits and the margin stay in
// km/h; speedUnits only applies to the speed statistics line.
func printSummary(w io.Writer, s *grading.Summary, speedUnits string) {
	fmt.Fprintln(w, "traveled_lanes:")
	for _, l := range s.TraveledLanes {
		fmt.Fprintf(w, "lane id: %s\t\tspeed limit: %.1f\n", l.ID, l.SpeedLimitKmh)
	}
	fmt.Fprintf(w, "min_speed = %s\n", formatMin(s.MinSpeedMargin))
	fmt.Fprintf(w, "min_dist (to boundary) = %s\n", formatMin(s.MinBoundaryDistance))
	fmt.Fprintf(w, "steps: %d localization, %d graded, %d off-lane, %d speeding, %d off-road; %d malformed skipped\n",
		s.LocalizationSteps, s.GradedSteps, s.OffLaneSteps, s.SpeedingSteps, s.OffRoadSamples, s.MalformedMessages)
	if s.Speed.Count > 0 {
		conv := func(kmh float64) float64 {
			return units.ConvertSpeed(kmh/units.MPSToKMPHFactor, speedUnits)
		}
		fmt.Fprintf(w, "speed %s: min %.1f, mean %.1f, p50 %.1f, p85 %.1f, p95 %.1f, max %.1f\n",
			speedUnits, conv(s.Speed.Min), conv(s.Speed.Mean), conv(s.Speed.P50),
			conv(s.Speed.P85), conv(s.Speed.P95), conv(s.Speed.Max))
	}
	fmt.Fprintln(w)
}

func formatMin(v float64) string {
	if math.IsInf(v, 1) {
		return "none"
	}
	return fmt.Sprintf("%.3f", v)
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

func runRuns(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	limit := fs.Int("n", 20, "number of runs to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("-db is required")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	store := db.NewRunStore(database.DB, nil)

	runs, err := store.ListRuns(*limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "%s  %-9s  %s", r.RunID, r.Status, r.RecordPath)
		if r.MinSpeedMargin != nil {
			fmt.Fprintf(stdout, "  min_speed=%.3f", *r.MinSpeedMargin)
		}
		if r.MinBoundaryDistance != nil {
			fmt.Fprintf(stdout, "  min_dist=%.3f", *r.MinBoundaryDistance)
		}
		if r.Error != "" {
			fmt.Fprintf(stdout, "  error=%q", r.Error)
		}
		fmt.Fprintln(stdout)

		lanes, err := store.ListRunLanes(r.RunID)
		if err != nil {
			return err
		}
		for _, l := range lanes {
			fmt.Fprintf(stdout, "    lane %s  %.1f km/h\n", l.LaneID, l.SpeedLimitKmh)
		}
	}
	return nil
}
