package grading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/drivecheck/internal/geometry"
	"github.com/banshee-data/drivecheck/internal/monitoring"
	"github.com/banshee-data/drivecheck/internal/record"
	"github.com/banshee-data/drivecheck/internal/units"
)

var (
	// ErrMapInconsistency wraps a lane id the map index does not know.
	// It aborts the session.
	ErrMapInconsistency = errors.New("map inconsistency")

	// ErrSourceRead wraps a failure to read the message stream. It aborts
	// the session.
	ErrSourceRead = errors.New("message source read failed")
)

// LaneIndex is the map lookup a Session needs. *hdmap.Index implements it.
type LaneIndex interface {
	FindLaneCandidates(x, y float64, prev string, hint []string) []string
	Has(id string) bool
	SpeedLimit(id string) (float64, error)
	LaneBoundary(id string) (orb.MultiLineString, error)
}

// Session grades one message stream. It is not safe for concurrent use;
// run independent sessions for parallelism.
type Session struct {
	name string
	idx  LaneIndex
	opts Options
	log  *monitoring.Logger

	currentLane string
	nextLanes   []string
	traveled    LaneSet

	detector  *OffRoadDetector
	margins   *SpeedMarginTracker
	distances []float64
	speeds    []float64
	centerMin float64

	started   bool
	initTime  float64
	firstTime float64
	lastTime  float64
	haveTime  bool

	localizationSteps int
	gradedSteps       int
	offLaneSteps      int
	offRoadSamples    int
	routingUpdates    int
	malformed         int
}

// NewSession returns a session over idx. name labels log lines and the
// summary. A nil logger discards output.
func NewSession(name string, idx LaneIndex, opts Options, logger *monitoring.Logger) *Session {
	return &Session{
		name:      name,
		idx:       idx,
		opts:      opts,
		log:       logger,
		traveled:  make(LaneSet),
		detector:  NewOffRoadDetector(opts.OffRoadThresholdSecs, opts.TouchEpsilon),
		margins:   NewSpeedMarginTracker(),
		centerMin: math.Inf(1),
	}
}

// CurrentLane returns the lane resolved at the last localization step.
func (s *Session) CurrentLane() (string, bool) {
	return s.currentLane, s.currentLane != ""
}

// NextLanes returns a copy of the lanes expected next.
func (s *Session) NextLanes() []string {
	out := make([]string, len(s.nextLanes))
	copy(out, s.nextLanes)
	return out
}

// OffRoadState returns the debounce state of the off-road detector.
func (s *Session) OffRoadState() OffRoadState {
	return s.detector.State()
}

// Run processes src until io.EOF and returns the summary. Read errors and
// map inconsistencies abort the pass. ctx is checked between messages.
func (s *Session) Run(ctx context.Context, src record.Source) (*Summary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
		}
		if err := s.Process(msg); err != nil {
			return nil, err
		}
	}
	return s.Summary(), nil
}

// Process applies one message. Messages on other channels are ignored.
// Malformed payloads are counted and skipped; only map inconsistencies
// are returned as errors.
func (s *Session) Process(msg record.Message) error {
	switch msg.Channel {
	case s.opts.RoutingChannel:
		return s.processRouting(msg)
	case s.opts.LocalizationChannel:
		return s.processLocalization(msg)
	default:
		return nil
	}
}

func (s *Session) observeTime(ts float64) {
	if !s.haveTime {
		s.firstTime = ts
		s.haveTime = true
	}
	s.lastTime = ts
}

func (s *Session) processRouting(msg record.Message) error {
	plan, err := record.DecodePlanning(msg.Payload)
	if err != nil {
		s.malformed++
		s.log.Debugf("skipping routing message %d: %v", msg.Seq, err)
		return nil
	}
	s.observeTime(plan.TimestampSec)

	ids := plan.LaneIDs()
	for _, id := range ids {
		if !s.idx.Has(id) {
			return fmt.Errorf("%w: routing plan at %.3f references lane %q", ErrMapInconsistency, plan.TimestampSec, id)
		}
	}
	s.nextLanes = NextLanes(ids, s.currentLane)
	s.routingUpdates++
	return nil
}

func (s *Session) processLocalization(msg record.Message) error {
	loc, err := record.DecodeLocalization(msg.Payload)
	if err != nil {
		s.malformed++
		s.log.Debugf("skipping localization message %d: %v", msg.Seq, err)
		return nil
	}
	s.observeTime(loc.TimestampSec)
	s.localizationSteps++
	now := loc.TimestampSec

	candidates := s.idx.FindLaneCandidates(loc.X, loc.Y, s.currentLane, s.nextLanes)
	lane, how := Disambiguate(candidates, s.nextLanes, s.traveled)
	s.currentLane = lane

	// The vehicle settles during warm-up; lane tracking runs but nothing
	// is recorded.
	if !s.started {
		s.started = true
		s.initTime = now
		return nil
	}
	if now-s.initTime <= s.opts.WarmupSecs {
		return nil
	}
	s.gradedSteps++

	speedMPS := units.SpeedFromVelocity(loc.VX, loc.VY)
	s.speeds = append(s.speeds, units.MPSToKMPH(speedMPS))

	if lane == "" {
		s.offLaneSteps++
		return nil
	}
	s.traveled.Add(lane)

	limitMPS, err := s.idx.SpeedLimit(lane)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapInconsistency, err)
	}
	margin, speedKmh, limitKmh := Margin(limitMPS, loc.VX, loc.VY)
	if s.margins.Observe(margin, limitKmh, len(candidates)) {
		if s.verboseStep() || margin < 0 {
			s.log.Debugf("t=%.3f lane=%s (%s of %v) limit=%.1f speed=%.1f margin=%.2f",
				now, lane, how, candidates, limitKmh, speedKmh, margin)
		}
	}

	boundary, err := s.idx.LaneBoundary(lane)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapInconsistency, err)
	}
	heading := geometry.HeadingOf(loc.Heading, loc.VX, loc.VY)
	footprint := geometry.VehicleFootprint(loc.X, loc.Y, heading, s.opts.Vehicle)
	dist := geometry.PolygonLineDistance(footprint, boundary)
	if c := geometry.PointLineDistance(orb.Point{loc.X, loc.Y}, boundary); c < s.centerMin {
		s.centerMin = c
	}

	if sample, ok := s.detector.Observe(lane, now, dist); ok {
		s.distances = append(s.distances, sample)
		if s.detector.State() == OffRoadConfirmed {
			s.offRoadSamples++
			s.log.Debugf("off-road violation: x=%.3f y=%.3f t=%.3f lane=%s", loc.X, loc.Y, now, lane)
		}
	}
	return nil
}

// verboseStep selects the periodic progress lines of verbose mode.
func (s *Session) verboseStep() bool {
	if s.localizationSteps < 5 {
		return true
	}
	return s.opts.VerboseEvery > 0 && s.localizationSteps%s.opts.VerboseEvery == 0
}

// Summary folds the carried state into a Summary. The returned value owns
// its slices; the session may keep processing afterwards.
func (s *Session) Summary() *Summary {
	lanes := make([]TraveledLane, 0, len(s.traveled))
	for id := range s.traveled {
		limit, err := s.idx.SpeedLimit(id)
		if err != nil {
			// Traveled lanes were resolved through the index.
			continue
		}
		lanes = append(lanes, TraveledLane{
			ID:            id,
			SpeedLimitKmh: units.Round(units.MPSToKMPH(limit), s.opts.SpeedLimitDecimals),
		})
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i].ID < lanes[j].ID })

	distances := make([]float64, len(s.distances))
	copy(distances, s.distances)
	speeds := make([]float64, len(s.speeds))
	copy(speeds, s.speeds)

	return &Summary{
		Record:              s.name,
		TraveledLanes:       lanes,
		MinSpeedMargin:      s.margins.Min(),
		MinBoundaryDistance: minOrInf(distances),
		MinCenterDistance:   s.centerMin,
		LocalizationSteps:   s.localizationSteps,
		GradedSteps:         s.gradedSteps,
		OffLaneSteps:        s.offLaneSteps,
		SpeedingSteps:       s.margins.Speeding(),
		OffRoadSamples:      s.offRoadSamples,
		RoutingUpdates:      s.routingUpdates,
		MalformedMessages:   s.malformed,
		FirstTimestamp:      s.firstTime,
		LastTimestamp:       s.lastTime,
		Speed:               computeSpeedStats(speeds),
		Margins:             s.margins.Margins(),
		Distances:           distances,
		Speeds:              speeds,
	}
}
