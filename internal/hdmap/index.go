package hdmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/drivecheck/internal/geometry"
)

// ErrUnknownLane is returned when a lane id is not present in the index.
// Grading treats it as a map inconsistency.
var ErrUnknownLane = errors.New("unknown lane")

// DefaultCellSize is the default grid cell edge in metres.
const DefaultCellSize = 50.0

// MaxCellsPerLane bounds how many grid cells one lane may cover.
const MaxCellsPerLane = 1 << 20

// indexedLane carries the derived geometry for one lane.
type indexedLane struct {
	lane     Lane
	polygon  orb.Polygon
	boundary orb.MultiLineString
	bound    orb.Bound
}

// Index is the lane lookup structure built from a Map. Lanes are bucketed
// into a regular grid by their bounding boxes so a position query only
// tests the lanes registered in its cell.
type Index struct {
	CellSize float64

	lanes map[string]*indexedLane
	ids   []string           // sorted lane ids
	grid  map[int64][]string // cell ID → lane ids, sorted
}

// BuildLaneIndex validates m and builds its lane index. cellSize <= 0
// selects DefaultCellSize.
func BuildLaneIndex(m *Map, cellSize float64) (*Index, error) {
	if m == nil {
		return nil, fmt.Errorf("nil map")
	}
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}

	idx := &Index{
		CellSize: cellSize,
		lanes:    make(map[string]*indexedLane, len(m.Lanes)),
		grid:     make(map[int64][]string),
	}

	for i := range m.Lanes {
		l := m.Lanes[i]
		if err := validateLane(l); err != nil {
			return nil, fmt.Errorf("lane %d: %w", i, err)
		}
		if _, dup := idx.lanes[l.ID]; dup {
			return nil, fmt.Errorf("duplicate lane id %q", l.ID)
		}

		poly := geometry.LanePolygon(l.LeftBoundary, l.RightBoundary)
		idx.lanes[l.ID] = &indexedLane{
			lane:     l,
			polygon:  poly,
			boundary: orb.MultiLineString{l.LeftBoundary, l.RightBoundary},
			bound:    poly.Bound(),
		}
		idx.ids = append(idx.ids, l.ID)
	}

	for _, il := range idx.lanes {
		for _, succ := range il.lane.Successors {
			if _, ok := idx.lanes[succ]; !ok {
				return nil, fmt.Errorf("lane %q: successor %q: %w", il.lane.ID, succ, ErrUnknownLane)
			}
		}
	}

	sort.Strings(idx.ids)
	for _, id := range idx.ids {
		if err := idx.register(id); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func validateLane(l Lane) error {
	if l.ID == "" {
		return fmt.Errorf("empty lane id")
	}
	if len(l.LeftBoundary) < 2 || len(l.RightBoundary) < 2 {
		return fmt.Errorf("lane %q: each boundary needs at least 2 points", l.ID)
	}
	if l.SpeedLimit < 0 || math.IsNaN(l.SpeedLimit) || math.IsInf(l.SpeedLimit, 0) {
		return fmt.Errorf("lane %q: invalid speed limit %v", l.ID, l.SpeedLimit)
	}
	return nil
}

// register adds a lane to every grid cell its bound overlaps. Lane ids are
// registered in sorted order so each cell's list stays sorted.
func (idx *Index) register(id string) error {
	b := idx.lanes[id].bound
	if cells := idx.cellCount(b); cells > MaxCellsPerLane {
		return fmt.Errorf("lane %q covers %.0f grid cells of %gm (max %d); use a larger cell size", id, cells, idx.CellSize, MaxCellsPerLane)
	}
	minX, minY := idx.cellCoords(b.Min[0], b.Min[1])
	maxX, maxY := idx.cellCoords(b.Max[0], b.Max[1])
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			cell := pairCell(cx, cy)
			idx.grid[cell] = append(idx.grid[cell], id)
		}
	}
	return nil
}

// cellCount returns the number of grid cells b overlaps, computed in float
// so huge bounds do not overflow.
func (idx *Index) cellCount(b orb.Bound) float64 {
	nx := math.Floor(b.Max[0]/idx.CellSize) - math.Floor(b.Min[0]/idx.CellSize) + 1
	ny := math.Floor(b.Max[1]/idx.CellSize) - math.Floor(b.Min[1]/idx.CellSize) + 1
	return nx * ny
}

func (idx *Index) cellCoords(x, y float64) (int64, int64) {
	return int64(math.Floor(x / idx.CellSize)), int64(math.Floor(y / idx.CellSize))
}

// pairCell computes a unique cell identifier using Szudzik's pairing
// function over zigzag-encoded cell coordinates, so negative coordinates
// map to distinct ids.
func pairCell(cellX, cellY int64) int64 {
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}

	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// Len returns the number of lanes in the index.
func (idx *Index) Len() int { return len(idx.ids) }

// LaneIDs returns all lane ids in sorted order.
func (idx *Index) LaneIDs() []string {
	out := make([]string, len(idx.ids))
	copy(out, idx.ids)
	return out
}

// Has reports whether id is in the index.
func (idx *Index) Has(id string) bool {
	_, ok := idx.lanes[id]
	return ok
}

// Lane returns the lane with the given id.
func (idx *Index) Lane(id string) (Lane, error) {
	il, ok := idx.lanes[id]
	if !ok {
		return Lane{}, fmt.Errorf("lane %q: %w", id, ErrUnknownLane)
	}
	return il.lane, nil
}

// SpeedLimit returns the lane's speed limit in m/s.
func (idx *Index) SpeedLimit(id string) (float64, error) {
	il, ok := idx.lanes[id]
	if !ok {
		return 0, fmt.Errorf("lane %q: %w", id, ErrUnknownLane)
	}
	return il.lane.SpeedLimit, nil
}

// LaneBoundary returns the lane's left and right boundary lines.
func (idx *Index) LaneBoundary(id string) (orb.MultiLineString, error) {
	il, ok := idx.lanes[id]
	if !ok {
		return nil, fmt.Errorf("lane %q: %w", id, ErrUnknownLane)
	}
	return il.boundary, nil
}

// LanePolygon returns the closed lane polygon.
func (idx *Index) LanePolygon(id string) (orb.Polygon, error) {
	il, ok := idx.lanes[id]
	if !ok {
		return nil, fmt.Errorf("lane %q: %w", id, ErrUnknownLane)
	}
	return il.polygon, nil
}

// FindLaneCandidates returns the ids of every lane whose polygon contains
// (x, y); points on a lane edge count as contained. An empty result means
// the position is off-lane.
//
// prev and the hint lanes are tested first and, when they match, lead the
// result in that order (prev, then hint order). The remaining lanes from the
// position's grid cell follow in ascending id order. Unknown hint ids are
// ignored. The query does not mutate the index.
func (idx *Index) FindLaneCandidates(x, y float64, prev string, hint []string) []string {
	p := orb.Point{x, y}
	var out []string
	seen := make(map[string]bool, len(hint)+1)

	try := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		il, ok := idx.lanes[id]
		if !ok {
			return
		}
		if il.bound.Contains(p) && planar.PolygonContains(il.polygon, p) {
			out = append(out, id)
		}
	}

	try(prev)
	for _, id := range hint {
		try(id)
	}

	cx, cy := idx.cellCoords(x, y)
	for _, id := range idx.grid[pairCell(cx, cy)] {
		try(id)
	}
	return out
}
