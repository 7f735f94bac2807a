package grading

// OffRoadState is the debounce state of an OffRoadDetector.
type OffRoadState string

const (
	OffRoadClear     OffRoadState = "clear"     // no boundary contact registered
	OffRoadCandidate OffRoadState = "candidate" // contact started, below threshold
	OffRoadConfirmed OffRoadState = "confirmed" // contact held for at least the threshold
)

// OffRoadDetector debounces contacts between the vehicle footprint and the
// lane boundary. A contact must persist for Threshold seconds before it
// produces a zero distance sample; shorter contacts are dropped.
//
// The candidate lane and its start time are set and cleared together.
type OffRoadDetector struct {
	Threshold float64 // seconds
	Epsilon   float64 // distances <= Epsilon count as contact

	state     OffRoadState
	lane      string
	startTime float64
}

// NewOffRoadDetector returns a detector in the clear state.
func NewOffRoadDetector(threshold, epsilon float64) *OffRoadDetector {
	return &OffRoadDetector{Threshold: threshold, Epsilon: epsilon, state: OffRoadClear}
}

// State returns the current debounce state.
func (d *OffRoadDetector) State() OffRoadState {
	return d.state
}

// Candidate returns the lane and start time of the registered contact.
func (d *OffRoadDetector) Candidate() (lane string, start float64, ok bool) {
	if d.state == OffRoadClear {
		return "", 0, false
	}
	return d.lane, d.startTime, true
}

func (d *OffRoadDetector) touching(distance float64) bool {
	return distance <= d.Epsilon
}

func (d *OffRoadDetector) reset() {
	d.state = OffRoadClear
	d.lane = ""
	d.startTime = 0
}

// Observe advances the detector by one localization step on lane at time
// now with the footprint's distance to the lane boundary. It returns the
// boundary distance sample to record, if any: clear steps without contact
// sample their distance, confirmed steps sample 0.
func (d *OffRoadDetector) Observe(lane string, now, distance float64) (sample float64, record bool) {
	touch := d.touching(distance)

	if d.state == OffRoadClear {
		if touch {
			d.state = OffRoadCandidate
			d.lane = lane
			d.startTime = now
			return 0, false
		}
		return distance, true
	}

	elapsed := now - d.startTime
	switch {
	case elapsed >= d.Threshold && touch:
		d.state = OffRoadConfirmed
		return 0, true
	case !touch:
		// Contact ended, either as noise or after a violation.
		d.reset()
		return 0, false
	default:
		return 0, false
	}
}
