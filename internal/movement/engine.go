// Package movement drives token movement on a scene: it constrains and
// measures requested paths, commits them one checkpoint leg at a time, fires
// region events for every landed leg and lets the initiating user pause,
// resume or stop the remainder.
package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/cache"
	"github.com/OCAP2/movement/internal/constrain"
	"github.com/OCAP2/movement/internal/continuation"
	"github.com/OCAP2/movement/internal/dispatcher"
	"github.com/OCAP2/movement/internal/logging"
	"github.com/OCAP2/movement/internal/measure"
	"github.com/OCAP2/movement/internal/pathfind"
	"github.com/OCAP2/movement/internal/region"
	"github.com/OCAP2/movement/internal/scene"
	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/pkg/core"
)

var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrNoMovement         = errors.New("no active movement")
	ErrMovementStopped    = errors.New("movement was stopped")
	ErrMovementInProgress = errors.New("token is already moving")
	ErrUnknownMethod      = errors.New("unknown movement method")
	ErrNotOwner           = continuation.ErrNotOwner
)

// ResumeFunc releases the pause it was returned for. The channel receives
// true once the movement continued, false when other pauses still hold it or
// it ended in the meantime.
type ResumeFunc func() <-chan bool

// Dependencies of an Engine. Scene and Backend are required.
type Dependencies struct {
	Scene   *scene.Context
	Actions *action.Registry
	Tokens  *cache.TokenCache
	Backend storage.Backend
	// Bus receives committed legs and region events. PRE_MOVE handlers
	// registered on it may veto a leg by returning false.
	Bus         *dispatcher.Dispatcher
	Cost        measure.CostFunc
	Aggregate   measure.Aggregator
	Pathfinding pathfind.Config
	Logger      *slog.Logger
	Now         func() time.Time
}

// Status is a snapshot of the movement of one token.
type Status struct {
	MovementID  string                  `json:"movementId"`
	UserID      string                  `json:"userId"`
	Status      continuation.Status     `json:"-"`
	State       string                  `json:"status"`
	Position    core.Waypoint           `json:"position"`
	Pending     []core.Waypoint         `json:"pending"`
	Passed      []core.MeasuredWaypoint `json:"passed"`
	Outstanding map[string]int          `json:"outstanding,omitempty"`
}

// mover serializes everything that touches the movement of one token.
type mover struct {
	mu      sync.Mutex
	tokenID string
	state   *continuation.State
	request core.MoveRequest
	// driver is the movement a goroutine is committing legs for.
	driver *continuation.State
	// version changes whenever a leg is committed or the movement ends.
	version uint64
}

// Engine owns the movements of every token on one scene.
type Engine struct {
	deps        Dependencies
	segmenter   *region.Segmenter
	constrainer *constrain.Constrainer
	pathfinder  *pathfind.Service
	movements   *cache.MovementIndex
	active      cache.SafeCounter

	mu     sync.Mutex
	movers map[string]*mover
}

// New creates an engine for the scene in deps.
func New(deps Dependencies) (*Engine, error) {
	if deps.Scene == nil {
		return nil, errors.New("movement engine requires a scene")
	}
	if deps.Backend == nil {
		return nil, errors.New("movement engine requires a storage backend")
	}
	if deps.Actions == nil {
		deps.Actions = action.Default()
	}
	if deps.Tokens == nil {
		deps.Tokens = cache.NewTokenCache()
	}
	if deps.Aggregate == nil {
		deps.Aggregate = measure.Median
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if _, ok := deps.Logger.Handler().(*logging.ContextHandler); !ok {
		deps.Logger = slog.New(logging.NewContextHandler(deps.Logger.Handler(), nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := &Engine{
		deps:      deps,
		segmenter: region.NewSegmenter(deps.Scene.Grid(), deps.Actions),
		movements: cache.NewMovementIndex(),
		movers:    make(map[string]*mover),
	}
	e.constrainer = constrain.New(constrain.Dependencies{
		Grid:      deps.Scene.Grid(),
		Walls:     deps.Scene.Walls(),
		Actions:   deps.Actions,
		Cost:      region.TerrainCost(deps.Cost),
		Terrain:   e.terrain,
		Aggregate: deps.Aggregate,
	})

	svc, err := pathfind.NewService(e.constrainer, deps.Pathfinding, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pathfinder: %w", err)
	}
	e.pathfinder = svc
	return e, nil
}

// terrain evaluates the regions of the scene as they are when a step is
// measured, so regions added after New are honoured.
func (e *Engine) terrain(from, to core.Waypoint) []core.TerrainEffect {
	return e.segmenter.TerrainFor(e.deps.Scene.Regions())(from, to)
}

func (e *Engine) Scene() *scene.Context         { return e.deps.Scene }
func (e *Engine) Tokens() *cache.TokenCache     { return e.deps.Tokens }
func (e *Engine) Actions() *action.Registry     { return e.deps.Actions }
func (e *Engine) Pathfinder() *pathfind.Service { return e.pathfinder }

// Active returns the number of movements that have not ended.
func (e *Engine) Active() int { return e.active.Value() }

// AddToken places a token on the scene. A token without history picks up
// whatever the backend recorded for it.
func (e *Engine) AddToken(t core.Token) error {
	if t.ID == "" {
		return errors.New("token id is required")
	}
	if len(t.History) == 0 {
		history, err := e.deps.Backend.LoadMovementHistory(t.ID)
		if err != nil {
			return fmt.Errorf("failed to load history of %s: %w", t.ID, err)
		}
		t.History = history
	}
	e.deps.Tokens.Add(t)
	return nil
}

// RemoveToken takes a token off the scene. Its movement is stopped and any
// pending pathfinding job is cancelled.
func (e *Engine) RemoveToken(tokenID string) bool {
	e.pathfinder.Cancel(tokenID)

	e.mu.Lock()
	m := e.movers[tokenID]
	delete(e.movers, tokenID)
	e.mu.Unlock()

	if m != nil {
		m.mu.Lock()
		if m.state != nil {
			e.stopLocked(m, m.state)
		}
		m.mu.Unlock()
	}
	e.movements.DeleteToken(tokenID)
	return e.deps.Tokens.Delete(tokenID)
}

// Token returns the committed state of a token.
func (e *Engine) Token(tokenID string) (core.Token, bool) {
	return e.deps.Tokens.Get(tokenID)
}

// MovementHistory returns the recorded history of a token.
func (e *Engine) MovementHistory(tokenID string) ([]core.MeasuredWaypoint, error) {
	t, ok := e.deps.Tokens.Get(tokenID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	return t.History, nil
}

// ClearMovementHistory resets the history of a token to empty.
func (e *Engine) ClearMovementHistory(tokenID string) error {
	if !e.deps.Tokens.Update(tokenID, func(t *core.Token) { t.History = nil }) {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	if err := e.deps.Backend.ClearMovementHistory(tokenID); err != nil {
		return fmt.Errorf("failed to clear history of %s: %w", tokenID, err)
	}
	e.deps.Logger.Debug("movement history cleared", "token", tokenID)
	return nil
}

// Status reports the current or last movement of a token.
func (e *Engine) Status(tokenID string) (Status, bool) {
	m := e.lookup(tokenID)
	if m == nil {
		return Status{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return Status{}, false
	}
	st := m.state
	return Status{
		MovementID:  st.MovementID,
		UserID:      st.UserID,
		Status:      st.Status(),
		State:       st.Status().String(),
		Position:    st.Position,
		Pending:     slices.Clone(st.Pending),
		Passed:      slices.Clone(st.Passed),
		Outstanding: st.Outstanding(),
	}, true
}

// Constrain resolves candidates into a path starting at the token and drops
// the steps the token cannot take. The boolean reports whether any step was
// dropped.
func (e *Engine) Constrain(tokenID string, candidates []core.WaypointInput, opts core.ConstrainOptions) ([]core.Waypoint, bool, error) {
	t, ok := e.deps.Tokens.Get(tokenID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	return e.constrain(t, candidates, opts)
}

func (e *Engine) constrain(t core.Token, candidates []core.WaypointInput, opts core.ConstrainOptions) ([]core.Waypoint, bool, error) {
	origin := t.Position
	origin.Checkpoint, origin.Explicit, origin.Intermediate = false, false, false

	inputs := make([]core.WaypointInput, 0, len(candidates)+1)
	inputs = append(inputs, core.InputFrom(origin))
	inputs = append(inputs, candidates...)

	path, constrained, err := e.constrainer.Constrain(origin, inputs, constrain.Options{
		Preview:     opts.Preview,
		IgnoreWalls: opts.IgnoreWalls,
		IgnoreCost:  opts.IgnoreCost,
		History:     constrain.RecordedHistory(t.History),
	})
	if err != nil {
		return nil, false, err
	}
	// the caller may start its path at the token itself
	if len(path) > 1 && path[1].SamePosition(path[0]) {
		path = slices.Delete(path, 1, 2)
	}
	return path, constrained, nil
}

// Measure prices path for a token, with region terrain applied and the
// token's history as cost context. Terrain boundary points are folded back
// into the waypoints of path.
func (e *Engine) Measure(tokenID string, path []core.Waypoint) (measure.Result, error) {
	t, ok := e.deps.Tokens.Get(tokenID)
	if !ok {
		return measure.Result{}, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	return e.measure(t.History, path)
}

func (e *Engine) measure(history []core.MeasuredWaypoint, path []core.Waypoint) (measure.Result, error) {
	regions := e.deps.Scene.Regions()
	injected := slices.Collect(e.segmenter.InjectTerrain(regions, path))
	res, err := measure.Measure(e.deps.Scene.Grid(), injected, measure.Options{
		Actions:   e.deps.Actions,
		Cost:      region.TerrainCost(e.deps.Cost),
		Aggregate: e.deps.Aggregate,
		Terrain:   e.segmenter.TerrainFor(regions),
		History:   history,
	})
	if err != nil {
		return measure.Result{}, err
	}
	return res.StripIntermediate(), nil
}

// FindPath starts a pathfinding job from the token through candidates. The
// token's previous job is cancelled.
func (e *Engine) FindPath(ctx context.Context, tokenID string, candidates []core.WaypointInput, opts pathfind.Options) (*pathfind.Job, error) {
	t, ok := e.deps.Tokens.Get(tokenID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	origin := t.Position
	origin.Checkpoint, origin.Explicit = false, false

	inputs := make([]core.WaypointInput, 0, len(candidates)+1)
	inputs = append(inputs, core.InputFrom(origin))
	inputs = append(inputs, candidates...)

	if opts.History.Waypoints() == nil && !opts.History.IsOverride() {
		opts.History = constrain.RecordedHistory(t.History)
	}
	return e.pathfinder.FindPath(ctx, tokenID, origin, inputs, opts)
}

// Close stops every movement and cancels pending pathfinding.
func (e *Engine) Close() {
	e.mu.Lock()
	movers := make([]*mover, 0, len(e.movers))
	for _, m := range e.movers {
		movers = append(movers, m)
	}
	e.mu.Unlock()

	for _, m := range movers {
		e.pathfinder.Cancel(m.tokenID)
		m.mu.Lock()
		if m.state != nil {
			e.stopLocked(m, m.state)
		}
		m.mu.Unlock()
	}
}

func (e *Engine) lookup(tokenID string) *mover {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.movers[tokenID]
}

func (e *Engine) moverFor(tokenID string) *mover {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.movers[tokenID]
	if !ok {
		m = &mover{tokenID: tokenID}
		e.movers[tokenID] = m
	}
	return m
}
