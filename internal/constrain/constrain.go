// Package constrain turns requested waypoints into a path the token can
// actually take: missing fields are defaulted, malformed footprints are
// rejected, and steps through walls or of infinite cost are dropped.
//
// Constraining is a pure function of its arguments. It never reads a token's
// rendered position and never writes history, so preview and commit share
// the same code path.
package constrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/measure"
	"github.com/OCAP2/movement/internal/walls"
	"github.com/OCAP2/movement/pkg/core"
)

// Validation failures of a waypoint. They are returned before anything is
// measured or committed.
var (
	ErrInvalidDimensions = errors.New("waypoint width and height must be positive")
	ErrUnknownShape      = errors.New("unknown token shape")
	ErrUnknownAction     = errors.New("unknown movement action")
)

type historyMode int

const (
	historyNone historyMode = iota
	historyRecorded
	historyOverride
)

// History is read-only movement context for cost functions. The zero value
// means no history.
type History struct {
	mode historyMode
	seq  []core.MeasuredWaypoint
}

// RecordedHistory uses the mover's current recorded history.
func RecordedHistory(seq []core.MeasuredWaypoint) History {
	return History{mode: historyRecorded, seq: seq}
}

// HistoryOverride replaces the recorded history with an explicit sequence.
func HistoryOverride(seq []core.MeasuredWaypoint) History {
	return History{mode: historyOverride, seq: seq}
}

func (h History) Waypoints() []core.MeasuredWaypoint {
	if h.mode == historyNone {
		return nil
	}
	return h.seq
}

func (h History) IsOverride() bool { return h.mode == historyOverride }

// Options control a single Constrain call.
type Options struct {
	// Preview marks a non-committing request.
	Preview     bool
	IgnoreWalls bool
	IgnoreCost  bool
	History     History
}

// Dependencies of a Constrainer.
type Dependencies struct {
	Grid    grid.Grid
	Walls   *walls.Set
	Actions *action.Registry
	// Cost and Terrain are forwarded to the measurer for the cost test.
	Cost      measure.CostFunc
	Terrain   measure.TerrainFunc
	Aggregate measure.Aggregator
}

// Constrainer rewrites candidate waypoints into a path the token can take.
// It holds no mutable state and is safe for concurrent use.
type Constrainer struct {
	deps Dependencies
}

// New returns a constrainer over the grid and walls in deps.
func New(deps Dependencies) *Constrainer {
	if deps.Actions == nil {
		deps.Actions = action.Default()
	}
	return &Constrainer{deps: deps}
}

func (c *Constrainer) Grid() grid.Grid           { return c.deps.Grid }
func (c *Constrainer) Actions() *action.Registry { return c.deps.Actions }

// Resolve fills in missing fields and validates the footprint of every
// candidate. The first candidate defaults from origin, every later one from
// its predecessor. Snapped, Explicit and Checkpoint are never inherited.
func (c *Constrainer) Resolve(origin core.Waypoint, candidates []core.WaypointInput) ([]core.Waypoint, error) {
	out := make([]core.Waypoint, 0, len(candidates))
	prev := origin
	if prev.Action == "" {
		prev.Action = c.deps.Actions.DefaultID()
	}
	for i, in := range candidates {
		w := core.Waypoint{
			X:          deref(in.X, prev.X),
			Y:          deref(in.Y, prev.Y),
			Elevation:  deref(in.Elevation, prev.Elevation),
			Width:      deref(in.Width, prev.Width),
			Height:     deref(in.Height, prev.Height),
			Shape:      deref(in.Shape, prev.Shape),
			Action:     deref(in.Action, prev.Action),
			Snapped:    deref(in.Snapped, false),
			Explicit:   deref(in.Explicit, false),
			// checkpoints mark commit boundaries of this request only
			Checkpoint: deref(in.Checkpoint, false),
		}
		if w.Action == "" {
			w.Action = c.deps.Actions.DefaultID()
		}
		if err := c.validate(w); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		out = append(out, w)
		prev = w
	}
	return out, nil
}

func (c *Constrainer) validate(w core.Waypoint) error {
	if !(w.Width > 0) || !(w.Height > 0) || math.IsInf(w.Width, 0) || math.IsInf(w.Height, 0) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidDimensions, w.Width, w.Height)
	}
	if !w.Shape.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownShape, int(w.Shape))
	}
	if _, ok := c.deps.Actions.Lookup(w.Action); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, w.Action)
	}
	return nil
}

// Constrain resolves the candidates and drops every step that collides with
// a blocking wall or has infinite cost. The first waypoint is the start of
// the path and is always kept. The boolean reports whether any step was
// dropped.
func (c *Constrainer) Constrain(origin core.Waypoint, candidates []core.WaypointInput, opts Options) ([]core.Waypoint, bool, error) {
	resolved, err := c.Resolve(origin, candidates)
	if err != nil {
		return nil, false, err
	}
	if len(resolved) == 0 {
		return nil, false, nil
	}

	history := append([]core.MeasuredWaypoint(nil), opts.History.Waypoints()...)
	out := []core.Waypoint{resolved[0]}
	constrained := false
	for _, cand := range resolved[1:] {
		prev := out[len(out)-1]
		ok, step := c.allowed(prev, cand, opts, history)
		if !ok {
			constrained = true
			continue
		}
		out = append(out, cand)
		history = append(history, step)
	}
	return out, constrained, nil
}

// Step tests the direct step between two resolved waypoints against walls
// and cost and returns its measurement. With IgnoreCost the measurement is
// left empty.
func (c *Constrainer) Step(from, to core.Waypoint, opts Options) (core.MeasuredWaypoint, bool) {
	ok, mw := c.allowed(from, to, opts, opts.History.Waypoints())
	return mw, ok
}

func (c *Constrainer) allowed(from, to core.Waypoint, opts Options, history []core.MeasuredWaypoint) (bool, core.MeasuredWaypoint) {
	strategy, _ := c.deps.Actions.Resolve(to.Action)
	if !opts.IgnoreWalls && !strategy.Teleport && c.Collides(from, to, strategy.BlockingEdgeType) {
		return false, core.MeasuredWaypoint{}
	}
	mw := core.MeasuredWaypoint{Waypoint: to}
	if opts.IgnoreCost {
		return true, mw
	}
	m := measure.New(c.deps.Grid, measure.Options{
		Actions:   c.deps.Actions,
		Cost:      c.deps.Cost,
		Aggregate: c.deps.Aggregate,
		Terrain:   c.deps.Terrain,
		History:   history,
	})
	stats, err := m.Step(from, to)
	if err != nil || math.IsInf(stats.Cost, 1) {
		return false, mw
	}
	mw.Cost, mw.Distance, mw.Spaces, mw.Diagonals = stats.Cost, stats.Distance, stats.Spaces, stats.Diagonals
	return true, mw
}

// Collides tests the straight move between the token centres at two
// waypoints against the walls restricting the given edge type.
func (c *Constrainer) Collides(from, to core.Waypoint, t walls.EdgeType) bool {
	if c.deps.Walls == nil || t == walls.EdgeNone {
		return false
	}
	g := c.deps.Grid
	return c.deps.Walls.Collides(g.TokenCenter(from), g.TokenCenter(to), t)
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
