// Command gen-drivelog writes a synthetic two-lane map and a .drivelog of a
// vehicle driving along it, for exercising drivecheck end to end.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/drivecheck/internal/hdmap"
	"github.com/banshee-data/drivecheck/internal/record"
	"github.com/banshee-data/drivecheck/internal/units"
)

const (
	laneHalfWidth = 1.75
	laneLength    = 5000.0
)

func main() {
	output := flag.String("o", "sample.drivelog", "output drivelog path")
	mapOut := flag.String("map", "sample-map.yaml", "output map path (.yaml, .yml or .json)")
	steps := flag.Int("n", 600, "number of localization messages")
	hz := flag.Float64("hz", 10, "localization rate")
	speedKmh := flag.Float64("speed", 45, "cruise speed in km/h")
	drift := flag.Bool("drift", false, "drift onto the lane boundary for the middle third of the drive")
	flag.Parse()

	if *hz <= 0 || *steps <= 0 {
		log.Fatalf("-n and -hz must be positive")
	}

	m := syntheticMap()
	if err := hdmap.WriteMap(*mapOut, m); err != nil {
		log.Fatalf("failed to write map: %v", err)
	}

	w, err := record.NewWriter(*output, "synthetic")
	if err != nil {
		log.Fatalf("failed to create drivelog: %v", err)
	}

	speed := *speedKmh / units.MPSToKMPHFactor
	dt := 1 / *hz
	plan := record.PlanFromLanes(0, "L1", "L2")

	for i := 0; i < *steps; i++ {
		ts := float64(i) * dt
		// Routing is republished once per second.
		if i%int(math.Max(1, math.Round(*hz))) == 0 {
			plan.TimestampSec = ts
			if err := w.WriteRaw(record.ChannelPlanning, ts, record.EncodePlanning(plan)); err != nil {
				log.Fatalf("failed to write routing: %v", err)
			}
		}

		y := 0.0
		if *drift && i >= *steps/3 && i < 2**steps/3 {
			y = 1.2
		}
		heading := 0.0
		loc := record.Localization{
			TimestampSec: ts,
			X:            10 + speed*ts,
			Y:            y,
			VX:           speed,
			Heading:      &heading,
		}
		if err := w.WriteRaw(record.ChannelLocalization, ts, record.EncodeLocalization(loc)); err != nil {
			log.Fatalf("failed to write localization: %v", err)
		}

		if (i+1)%100 == 0 {
			log.Printf("%d/%d messages", i+1, *steps)
		}
	}

	if err := w.Close(); err != nil {
		log.Fatalf("failed to close drivelog: %v", err)
	}
	log.Printf("✓ Created: %s (%d messages) and %s", *output, w.Count(), *mapOut)
}

// syntheticMap returns two adjacent straight lanes: L1 at 50 km/h and L2
// at 60 km/h to its left.
func syntheticMap() *hdmap.Map {
	lane := func(id string, y, limitKmh float64) hdmap.Lane {
		return hdmap.Lane{
			ID:            id,
			SpeedLimit:    limitKmh / units.MPSToKMPHFactor,
			LeftBoundary:  orb.LineString{{0, y + laneHalfWidth}, {laneLength, y + laneHalfWidth}},
			RightBoundary: orb.LineString{{0, y - laneHalfWidth}, {laneLength, y - laneHalfWidth}},
		}
	}
	l1 := lane("L1", 0, 50)
	l1.Successors = []string{"L2"}
	return &hdmap.Map{
		Name:  "synthetic-two-lane",
		Lanes: []hdmap.Lane{l1, lane("L2", 2*laneHalfWidth, 60)},
	}
}
