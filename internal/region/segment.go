package region

import (
	"iter"
	"math"
	"sort"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/geo"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/measure"
	"github.com/OCAP2/movement/pkg/core"
)

// Segmenter splits paths into region movement segments.
type Segmenter struct {
	grid    grid.Grid
	actions *action.Registry
}

func NewSegmenter(g grid.Grid, actions *action.Registry) *Segmenter {
	if actions == nil {
		actions = action.Default()
	}
	return &Segmenter{grid: g, actions: actions}
}

func (s *Segmenter) teleport(w core.Waypoint) bool {
	st, ok := s.actions.Resolve(w.Action)
	return ok && st.Teleport
}

// sample is a point of the path with its containment.
type sample struct {
	w      core.Waypoint
	inside bool
	// step is the index of the waypoint that ends the step this sample lies on.
	step     int
	teleport bool
}

// Segmentize splits path into segments relative to r. Segment types are
// derived from the containment of their endpoints, so MOVE segments are
// inside at both ends, ENTER segments only at their end and EXIT segments
// only at their start. Parts of the path outside the region are covered by
// the following ENTER segment.
func (s *Segmenter) Segmentize(r *Region, path []core.Waypoint) []core.RegionMovementSegment {
	if len(path) == 0 {
		return nil
	}
	samples := s.samples(r, path)

	var segs []core.RegionMovementSegment
	anchor := samples[0].w
	moveStep := -1
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		switch {
		case a.inside && b.inside:
			if n := len(segs); n > 0 && moveStep == b.step && segs[n-1].Type == core.SegmentMove && segs[n-1].To == a.w {
				segs[n-1].To = b.w
				continue
			}
			segs = append(segs, core.RegionMovementSegment{Type: core.SegmentMove, From: a.w, To: b.w, Teleport: b.teleport})
			moveStep = b.step
		case !a.inside && b.inside:
			segs = append(segs, core.RegionMovementSegment{Type: core.SegmentEnter, From: anchor, To: b.w, Teleport: b.teleport})
			moveStep = -1
		case a.inside && !b.inside:
			segs = append(segs, core.RegionMovementSegment{Type: core.SegmentExit, From: a.w, To: b.w, Teleport: b.teleport})
			anchor = b.w
			moveStep = -1
		}
	}
	return segs
}

// samples lists every waypoint of the path plus points just before and
// after each boundary crossing, each with its tested containment.
func (s *Segmenter) samples(r *Region, path []core.Waypoint) []sample {
	out := []sample{{w: path[0], inside: TestInsideRegion(s.grid, r, path[0])}}
	for k := 1; k < len(path); k++ {
		a, b := path[k-1], path[k]
		tele := s.teleport(b)
		if !tele {
			for _, p := range s.straddle(r, a, b) {
				if p.SamePosition(out[len(out)-1].w) || p.SamePosition(b) {
					continue
				}
				out = append(out, sample{w: p, inside: TestInsideRegion(s.grid, r, p), step: k})
			}
		}
		out = append(out, sample{w: b, inside: TestInsideRegion(s.grid, r, b), step: k, teleport: tele})
	}
	return out
}

// crossings returns the parameters along a→b at which the token centre
// crosses an edge or elevation bound of r.
func (s *Segmenter) crossings(r *Region, a, b core.Waypoint) []float64 {
	ca, cb := s.grid.TokenCenter(a), s.grid.TokenCenter(b)
	var ts []float64
	if r.bounds.Overlaps(geo.BoundsOf([]core.Point{ca, cb})) {
		for _, p := range r.polygons() {
			ts = append(ts, p.Crossings(ca, cb)...)
		}
	}
	if a.Elevation != b.Elevation {
		for _, bound := range []*float64{r.cfg.Elevation.Bottom, r.cfg.Elevation.Top} {
			if bound == nil {
				continue
			}
			t := (*bound - a.Elevation) / (b.Elevation - a.Elevation)
			if t > 0 && t < 1 {
				ts = append(ts, t)
			}
		}
	}
	sort.Float64s(ts)
	return ts
}

// straddle returns waypoints one pixel before and after each crossing, in path
// order. They are marked intermediate.
func (s *Segmenter) straddle(r *Region, a, b core.Waypoint) []core.Waypoint {
	ts := s.crossings(r, a, b)
	if len(ts) == 0 {
		return nil
	}
	length := math.Max(math.Abs(float64(b.X-a.X)), math.Abs(float64(b.Y-a.Y)))
	dt := 1.0
	if length > 0 {
		dt = 1 / length
	}
	if de := math.Abs(b.Elevation - a.Elevation); de > 0 {
		dt = math.Min(dt, 0.01/de)
	}
	var out []core.Waypoint
	for _, t := range ts {
		for _, pt := range []float64{t - dt, t + dt} {
			if pt <= 0 || pt >= 1 {
				continue
			}
			w := lerpWaypoint(a, b, pt)
			if n := len(out); n > 0 && out[n-1].SamePosition(w) {
				continue
			}
			out = append(out, w)
		}
	}
	return out
}

func lerpWaypoint(a, b core.Waypoint, t float64) core.Waypoint {
	w := b
	w.X = a.X + int(math.Round(float64(b.X-a.X)*t))
	w.Y = a.Y + int(math.Round(float64(b.Y-a.Y)*t))
	w.Elevation = a.Elevation + (b.Elevation-a.Elevation)*t
	w.Explicit = false
	w.Checkpoint = false
	w.Intermediate = true
	return w
}

// InjectTerrain yields the path with intermediate waypoints inserted around
// the boundaries of regions that modify movement cost. The sequence is lazy
// and can be iterated any number of times.
func (s *Segmenter) InjectTerrain(regions []*Region, path []core.Waypoint) iter.Seq[core.Waypoint] {
	var terrain []*Region
	for _, r := range regions {
		if r.ModifiesMovement() {
			terrain = append(terrain, r)
		}
	}
	return func(yield func(core.Waypoint) bool) {
		for k, w := range path {
			if k > 0 && len(terrain) > 0 && !s.teleport(w) {
				for _, p := range s.boundaryPoints(terrain, path[k-1], w) {
					if !yield(p) {
						return
					}
				}
			}
			if !yield(w) {
				return
			}
		}
	}
}

func (s *Segmenter) boundaryPoints(regions []*Region, a, b core.Waypoint) []core.Waypoint {
	type edgePoint struct {
		t float64
		w core.Waypoint
	}
	var all []edgePoint
	length := math.Max(math.Abs(float64(b.X-a.X)), math.Abs(float64(b.Y-a.Y)))
	for _, r := range regions {
		for _, p := range s.straddle(r, a, b) {
			t := 0.0
			if length > 0 {
				t = math.Max(math.Abs(float64(p.X-a.X)), math.Abs(float64(p.Y-a.Y))) / length
			}
			all = append(all, edgePoint{t: t, w: p})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].t < all[j].t })
	out := make([]core.Waypoint, 0, len(all))
	for _, p := range all {
		if p.w.SamePosition(a) || p.w.SamePosition(b) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].SamePosition(p.w) {
			continue
		}
		out = append(out, p.w)
	}
	return out
}

// TerrainFor returns the terrain effects for a step: every cost modifier of
// every region containing the midpoint of the step.
func (s *Segmenter) TerrainFor(regions []*Region) measure.TerrainFunc {
	return func(from, to core.Waypoint) []core.TerrainEffect {
		ca, cb := s.grid.TokenCenter(from), s.grid.TokenCenter(to)
		mid := core.ElevatedPoint{X: (ca.X + cb.X) / 2, Y: (ca.Y + cb.Y) / 2, Elevation: to.Elevation}
		var out []core.TerrainEffect
		for _, r := range regions {
			if !r.ModifiesMovement() || !r.TestPoint(mid) {
				continue
			}
			for _, b := range r.Behaviors() {
				cm, ok := b.(CostModifier)
				if !ok {
					continue
				}
				if m := cm.Multiplier(to.Action, to.Elevation); m != 1 {
					out = append(out, core.TerrainEffect{RegionID: r.ID(), Behavior: cm.Name(), Multiplier: m})
				}
			}
		}
		return out
	}
}

// TerrainCost wraps base so the terrain multipliers of the step apply.
func TerrainCost(base measure.CostFunc) measure.CostFunc {
	return func(cost float64, from, to core.GridOffset, distance float64, seg core.SegmentData) float64 {
		if base != nil {
			cost = base(cost, from, to, distance, seg)
		}
		for _, e := range seg.Terrain {
			cost *= e.Multiplier
		}
		return cost
	}
}

// Events derives the movement events for one region from the segments of a
// committed leg. wasInside and isInside are the token's containment before
// and after the leg.
func Events(segs []core.RegionMovementSegment, wasInside, isInside bool) []core.RegionEventName {
	var out []core.RegionEventName
	if !wasInside && isInside {
		out = append(out, core.EventEnter)
	}
	within := false
	for _, s := range segs {
		switch s.Type {
		case core.SegmentEnter:
			out = append(out, core.EventMoveIn)
		case core.SegmentExit:
			out = append(out, core.EventMoveOut)
		case core.SegmentMove:
			within = true
		}
	}
	if within {
		out = append(out, core.EventMoveWithin)
	}
	if wasInside && !isInside {
		out = append(out, core.EventExit)
	}
	return out
}
