package grading

// LaneSet is a set of lane ids.
type LaneSet map[string]struct{}

// Add inserts id.
func (s LaneSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s LaneSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// indexOf returns the position of id in lanes.
func indexOf(lanes []string, id string) (int, bool) {
	for i, l := range lanes {
		if l == id {
			return i, true
		}
	}
	return -1, false
}

// NextLanes derives the lanes the vehicle may drive next from a flattened
// routing plan. With no current lane ("") the whole plan is returned.
// Otherwise the plan is truncated to start at the first occurrence of
// current; when current does not appear, the whole plan is returned.
// The result never aliases plan.
func NextLanes(plan []string, current string) []string {
	start := 0
	if current != "" {
		if i, ok := indexOf(plan, current); ok {
			start = i
		}
	}
	out := make([]string, len(plan)-start)
	copy(out, plan[start:])
	return out
}

// Resolution records which rule picked the current lane.
type Resolution string

const (
	ResolvedNone     Resolution = "none"     // no candidates: off-lane
	ResolvedSingle   Resolution = "single"   // exactly one candidate
	ResolvedRouting  Resolution = "routing"  // candidate found in next lanes
	ResolvedBack     Resolution = "back"     // candidate already traveled, not in next lanes
	ResolvedFallback Resolution = "fallback" // first candidate, no supporting evidence
)

// Disambiguate picks the current lane from the lanes containing the
// vehicle position.
//
// Among several candidates the first one present in nextLanes wins. If none
// is, the last candidate that was already traveled wins. Otherwise the first
// candidate is returned; that fallback is deterministic but carries no
// routing or geometric evidence. An empty candidate list resolves to "".
func Disambiguate(candidates, nextLanes []string, traveled LaneSet) (string, Resolution) {
	switch len(candidates) {
	case 0:
		return "", ResolvedNone
	case 1:
		return candidates[0], ResolvedSingle
	}

	routing, routingFound := "", false
	back := ""
	for _, c := range candidates {
		if _, ok := indexOf(nextLanes, c); ok {
			if !routingFound {
				routing, routingFound = c, true
			}
			continue
		}
		if traveled.Has(c) {
			back = c
		}
	}

	switch {
	case routingFound:
		return routing, ResolvedRouting
	case back != "":
		return back, ResolvedBack
	default:
		return candidates[0], ResolvedFallback
	}
}
