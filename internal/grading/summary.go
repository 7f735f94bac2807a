package grading

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TraveledLane is a lane driven after warm-up and its limit in km/h.
type TraveledLane struct {
	ID            string  `json:"lane_id"`
	SpeedLimitKmh float64 `json:"speed_limit_kmph"`
}

// SpeedStats describes the vehicle speed over graded steps, in km/h.
type SpeedStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	P95   float64 `json:"p95"`
}

// Summary is the result of one session, or of several combined.
//
// MinSpeedMargin and MinBoundaryDistance are +Inf when no sample was
// recorded. A negative MinSpeedMargin is the worst excess over a limit;
// a MinBoundaryDistance of 0 means a sustained off-road contact occurred.
type Summary struct {
	Record string

	TraveledLanes       []TraveledLane
	MinSpeedMargin      float64
	MinBoundaryDistance float64
	// MinCenterDistance is the pose origin's closest approach to a lane
	// boundary over steps with a resolved lane.
	MinCenterDistance float64

	LocalizationSteps int
	GradedSteps       int
	OffLaneSteps      int
	SpeedingSteps     int
	OffRoadSamples    int
	RoutingUpdates    int
	MalformedMessages int

	FirstTimestamp float64
	LastTimestamp  float64

	Speed SpeedStats

	// Owned sample slices in step order.
	Margins   []float64
	Distances []float64
	Speeds    []float64
}

// Speeding reports whether any counted margin was negative.
func (s *Summary) Speeding() bool { return s.MinSpeedMargin < 0 }

// OffRoad reports whether a sustained boundary contact was recorded.
func (s *Summary) OffRoad() bool { return s.MinBoundaryDistance == 0 }

// minOrInf folds samples to their minimum, or +Inf when empty.
func minOrInf(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Inf(1)
	}
	return floats.Min(samples)
}

// computeSpeedStats summarises speeds with empirical percentiles.
func computeSpeedStats(speeds []float64) SpeedStats {
	if len(speeds) == 0 {
		return SpeedStats{}
	}
	sorted := make([]float64, len(speeds))
	copy(sorted, speeds)
	sort.Float64s(sorted)

	return SpeedStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P85:   stat.Quantile(0.85, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

// finite maps ±Inf and NaN to nil so JSON output stays valid.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type summaryJSON struct {
	Record              string         `json:"record,omitempty"`
	TraveledLanes       []TraveledLane `json:"traveled_lanes"`
	MinSpeedMargin      *float64       `json:"min_speed_margin"`
	MinBoundaryDistance *float64       `json:"min_boundary_distance"`
	MinCenterDistance   *float64       `json:"min_center_distance"`
	LocalizationSteps   int            `json:"localization_steps"`
	GradedSteps         int            `json:"graded_steps"`
	OffLaneSteps        int            `json:"off_lane_steps"`
	SpeedingSteps       int            `json:"speeding_steps"`
	OffRoadSamples      int            `json:"off_road_samples"`
	RoutingUpdates      int            `json:"routing_updates"`
	MalformedMessages   int            `json:"malformed_messages"`
	FirstTimestamp      float64        `json:"first_timestamp"`
	LastTimestamp       float64        `json:"last_timestamp"`
	Speed               SpeedStats     `json:"speed_kmph"`
}

// MarshalJSON encodes the summary without sample slices. Infinite minima
// become null.
func (s Summary) MarshalJSON() ([]byte, error) {
	lanes := s.TraveledLanes
	if lanes == nil {
		lanes = []TraveledLane{}
	}
	return json.Marshal(summaryJSON{
		Record:              s.Record,
		TraveledLanes:       lanes,
		MinSpeedMargin:      finite(s.MinSpeedMargin),
		MinBoundaryDistance: finite(s.MinBoundaryDistance),
		MinCenterDistance:   finite(s.MinCenterDistance),
		LocalizationSteps:   s.LocalizationSteps,
		GradedSteps:         s.GradedSteps,
		OffLaneSteps:        s.OffLaneSteps,
		SpeedingSteps:       s.SpeedingSteps,
		OffRoadSamples:      s.OffRoadSamples,
		RoutingUpdates:      s.RoutingUpdates,
		MalformedMessages:   s.MalformedMessages,
		FirstTimestamp:      s.FirstTimestamp,
		LastTimestamp:       s.LastTimestamp,
		Speed:               s.Speed,
	})
}
