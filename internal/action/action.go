// Package action resolves movement action ids to their movement strategy.
// A Registry is built once at startup and never changes afterwards.
package action

import (
	"fmt"
	"math"
	"sort"

	"github.com/OCAP2/movement/internal/walls"
	"github.com/OCAP2/movement/pkg/core"
)

// Built-in action ids.
const (
	Walk     = "walk"
	Fly      = "fly"
	Swim     = "swim"
	Burrow   = "burrow"
	Climb    = "climb"
	Crawl    = "crawl"
	Jump     = "jump"
	Blink    = "blink"
	Displace = "displace"
)

// CostFunc prices one step of a token's reference cell (or one of its
// occupied cells) from one offset to another. distance is the measured grid
// distance of the step; baseCost is the cost before this function applies,
// which is the distance unless another function has already run.
type CostFunc func(baseCost float64, from, to core.GridOffset, distance float64, seg core.SegmentData) float64

// Multiply returns a cost function scaling the base cost.
func Multiply(k float64) CostFunc {
	return func(base float64, _, _ core.GridOffset, _ float64, _ core.SegmentData) float64 {
		return base * k
	}
}

// Free is a cost function that always returns zero.
func Free(float64, core.GridOffset, core.GridOffset, float64, core.SegmentData) float64 { return 0 }

// Impassable is a cost function that always returns +Inf.
func Impassable(float64, core.GridOffset, core.GridOffset, float64, core.SegmentData) float64 {
	return math.Inf(1)
}

// Strategy describes how a movement action behaves.
type Strategy struct {
	ID    string
	Label string
	// Teleport moves jump straight to the destination without crossing cells.
	Teleport bool
	// Measured actions contribute distance and cost.
	Measured bool
	// BlockingEdgeType is the wall restriction that stops this action.
	BlockingEdgeType walls.EdgeType
	// CostFn is nil for actions that cost their distance.
	CostFn CostFunc
}

// Cost applies the strategy's cost function to a step.
func (s Strategy) Cost(base float64, from, to core.GridOffset, distance float64, seg core.SegmentData) float64 {
	if !s.Measured {
		return 0
	}
	if s.CostFn == nil {
		return base
	}
	return s.CostFn(base, from, to, distance, seg)
}

// Registry is an immutable map from action id to strategy.
type Registry struct {
	byID      map[string]Strategy
	ids       []string
	defaultID string
}

// NewRegistry builds a registry. The default action must be one of the
// given strategies.
func NewRegistry(defaultID string, strategies ...Strategy) (*Registry, error) {
	r := &Registry{byID: make(map[string]Strategy, len(strategies)), defaultID: defaultID}
	for _, s := range strategies {
		if s.ID == "" {
			return nil, fmt.Errorf("action strategy without id")
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate action %q", s.ID)
		}
		if s.Label == "" {
			s.Label = s.ID
		}
		r.byID[s.ID] = s
		r.ids = append(r.ids, s.ID)
	}
	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default action %q is not registered", defaultID)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Builtin returns the built-in strategies.
func Builtin() []Strategy {
	return []Strategy{
		{ID: Walk, Label: "Walk", Measured: true, BlockingEdgeType: walls.EdgeMove},
		{ID: Fly, Label: "Fly", Measured: true, BlockingEdgeType: walls.EdgeMove},
		{ID: Swim, Label: "Swim", Measured: true, BlockingEdgeType: walls.EdgeMove, CostFn: Multiply(2)},
		{ID: Burrow, Label: "Burrow", Measured: true, BlockingEdgeType: walls.EdgeNone},
		{ID: Climb, Label: "Climb", Measured: true, BlockingEdgeType: walls.EdgeMove, CostFn: Multiply(2)},
		{ID: Crawl, Label: "Crawl", Measured: true, BlockingEdgeType: walls.EdgeMove, CostFn: Multiply(2)},
		{ID: Jump, Label: "Jump", Measured: true, BlockingEdgeType: walls.EdgeMove},
		{ID: Blink, Label: "Blink", Teleport: true, Measured: true, BlockingEdgeType: walls.EdgeNone},
		{ID: Displace, Label: "Displace", Teleport: true, Measured: false, BlockingEdgeType: walls.EdgeNone, CostFn: Free},
	}
}

// Default returns a registry of the built-in actions with walk as default.
func Default() *Registry {
	r, err := NewRegistry(Walk, Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// WithDefault returns a copy of r using a different default action.
func (r *Registry) WithDefault(id string) (*Registry, error) {
	if _, ok := r.byID[id]; !ok {
		return nil, fmt.Errorf("default action %q is not registered", id)
	}
	return &Registry{byID: r.byID, ids: r.ids, defaultID: id}, nil
}

// Lookup returns the strategy registered as id.
func (r *Registry) Lookup(id string) (Strategy, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Resolve looks up id, falling back to the default action for "".
func (r *Registry) Resolve(id string) (Strategy, bool) {
	if id == "" {
		id = r.defaultID
	}
	return r.Lookup(id)
}

// DefaultID is the action used by waypoints that name none.
func (r *Registry) DefaultID() string { return r.defaultID }

// IDs returns the registered action ids in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}
