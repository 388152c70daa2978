// Package measure prices a waypoint path on a grid.
//
// Every step between consecutive waypoints is expanded into the cells its
// reference cell crosses. For tokens that occupy several cells, each occupied
// cell is moved by the same delta and priced, and the per-cell costs are
// combined by an Aggregator. An infinite cost means the step is impassable
// and is returned as-is.
package measure

import (
	"errors"
	"fmt"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/pkg/core"
)

// ErrUnknownAction is returned when a waypoint names an unregistered action.
var ErrUnknownAction = errors.New("unknown movement action")

// CostFunc is the cost function signature shared with action strategies.
type CostFunc = action.CostFunc

// TerrainFunc returns the terrain effects that apply to the step between two
// waypoints.
type TerrainFunc func(from, to core.Waypoint) []core.TerrainEffect

// Options configure a measurement.
type Options struct {
	// Actions resolves waypoint actions. Defaults to action.Default().
	Actions *action.Registry
	// Cost is applied after the action's own cost function.
	Cost CostFunc
	// Aggregate combines per-cell costs. Defaults to Median.
	Aggregate Aggregator
	Terrain   TerrainFunc
	// History is prior movement, passed read-only to cost functions.
	History []core.MeasuredWaypoint
}

// Stats are accumulated measurement values.
type Stats struct {
	Distance  float64 `json:"distance"`
	Cost      float64 `json:"cost"`
	Spaces    int     `json:"spaces"`
	Diagonals int     `json:"diagonals"`
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Distance:  s.Distance + o.Distance,
		Cost:      s.Cost + o.Cost,
		Spaces:    s.Spaces + o.Spaces,
		Diagonals: s.Diagonals + o.Diagonals,
	}
}

// Result of Measure. Waypoints carry the values of the segment ending at each
// waypoint; Cumulative carries running totals.
type Result struct {
	Waypoints  []core.MeasuredWaypoint
	Cumulative []Stats
	Stats
}

// Measurer measures paths on a fixed grid.
type Measurer struct {
	grid grid.Grid
	opts Options
}

// New returns a measurer for g. Without actions it uses the built-in
// registry.
func New(g grid.Grid, opts Options) *Measurer {
	if opts.Actions == nil {
		opts.Actions = action.Default()
	}
	if opts.Aggregate == nil {
		opts.Aggregate = Median
	}
	return &Measurer{grid: g, opts: opts}
}

// Measure is a convenience wrapper around New(g, opts).Measure(path).
func Measure(g grid.Grid, path []core.Waypoint, opts Options) (Result, error) {
	return New(g, opts).Measure(path)
}

// Measure prices the path.
func (m *Measurer) Measure(path []core.Waypoint) (Result, error) {
	res := Result{
		Waypoints:  make([]core.MeasuredWaypoint, len(path)),
		Cumulative: make([]Stats, len(path)),
	}
	if len(path) == 0 {
		return res, nil
	}
	res.Waypoints[0] = core.MeasuredWaypoint{Waypoint: path[0]}

	history := append([]core.MeasuredWaypoint(nil), m.opts.History...)
	st := &grid.DiagonalState{}
	for k := 1; k < len(path); k++ {
		step, err := m.step(path[k-1], path[k], st, history)
		if err != nil {
			return Result{}, fmt.Errorf("waypoint %d: %w", k, err)
		}
		mw := core.MeasuredWaypoint{
			Waypoint:  path[k],
			Cost:      step.Cost,
			Distance:  step.Distance,
			Spaces:    step.Spaces,
			Diagonals: step.Diagonals,
		}
		res.Waypoints[k] = mw
		res.Stats = res.Stats.add(step)
		res.Cumulative[k] = res.Stats
		history = append(history, mw)
	}
	return res, nil
}

// Step measures a single move between two waypoints.
func (m *Measurer) Step(from, to core.Waypoint) (Stats, error) {
	return m.step(from, to, &grid.DiagonalState{}, m.opts.History)
}

func (m *Measurer) step(from, to core.Waypoint, st *grid.DiagonalState, history []core.MeasuredWaypoint) (Stats, error) {
	strategy, ok := m.opts.Actions.Resolve(to.Action)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownAction, to.Action)
	}
	if !strategy.Measured {
		return Stats{}, nil
	}
	seg := core.SegmentData{
		Action:    strategy.ID,
		Width:     to.Width,
		Height:    to.Height,
		Shape:     to.Shape,
		Elevation: to.Elevation,
		Teleport:  strategy.Teleport,
		History:   history,
	}
	if m.opts.Terrain != nil {
		seg.Terrain = m.opts.Terrain(from, to)
	}

	g := m.grid
	fromRef, toRef := g.Reference(from), g.Reference(to)
	if g.IsGridless() {
		sm := g.MeasurePoints(g.TokenCenter(from), g.TokenCenter(to))
		return Stats{Distance: sm.Distance, Cost: m.cost(strategy, sm.Distance, fromRef, toRef, seg)}, nil
	}
	if fromRef == toRef {
		return Stats{}, nil
	}

	cells := g.Footprint(to)
	if strategy.Teleport {
		sm := g.MeasureStep(fromRef, toRef, st)
		return Stats{
			Distance:  sm.Distance,
			Spaces:    sm.Spaces,
			Diagonals: sm.Diagonals,
			Cost:      m.aggregate(strategy, sm.Distance, cells, toRef, fromRef, toRef, seg),
		}, nil
	}

	var out Stats
	refs := g.DirectPath(fromRef, toRef)
	for i := 1; i < len(refs); i++ {
		a, b := refs[i-1], refs[i]
		sm := g.MeasureStep(a, b, st)
		out = out.add(Stats{
			Distance:  sm.Distance,
			Spaces:    sm.Spaces,
			Diagonals: sm.Diagonals,
			Cost:      m.aggregate(strategy, sm.Distance, cells, toRef, a, b, seg),
		})
	}
	return out, nil
}

// aggregate prices the sub-step a→b of the reference cell for every occupied
// cell. cells are the token's cells when its reference cell is at ref.
func (m *Measurer) aggregate(s action.Strategy, distance float64, cells []core.GridOffset, ref, a, b core.GridOffset, seg core.SegmentData) float64 {
	if len(cells) <= 1 {
		return m.cost(s, distance, a, b, seg)
	}
	costs := make([]float64, len(cells))
	for i, c := range cells {
		from := m.grid.Translate(c, ref, a)
		to := m.grid.Translate(c, ref, b)
		costs[i] = m.cost(s, distance, from, to, seg)
	}
	return m.opts.Aggregate(costs)
}

func (m *Measurer) cost(s action.Strategy, distance float64, from, to core.GridOffset, seg core.SegmentData) float64 {
	c := s.Cost(distance, from, to, distance, seg)
	if m.opts.Cost != nil {
		c = m.opts.Cost(c, from, to, distance, seg)
	}
	return c
}

// StripIntermediate removes intermediate waypoints, folding their segment
// values into the next kept waypoint. Totals are unchanged.
func (r Result) StripIntermediate() Result {
	out := Result{Stats: r.Stats}
	var carry Stats
	for i, w := range r.Waypoints {
		seg := Stats{Distance: w.Distance, Cost: w.Cost, Spaces: w.Spaces, Diagonals: w.Diagonals}
		carry = carry.add(seg)
		if w.Intermediate && i != len(r.Waypoints)-1 {
			continue
		}
		w.Distance, w.Cost, w.Spaces, w.Diagonals = carry.Distance, carry.Cost, carry.Spaces, carry.Diagonals
		out.Waypoints = append(out.Waypoints, w)
		out.Cumulative = append(out.Cumulative, r.Cumulative[i])
		carry = Stats{}
	}
	return out
}
