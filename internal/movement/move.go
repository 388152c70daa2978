package movement

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/OCAP2/movement/internal/continuation"
	"github.com/OCAP2/movement/internal/dispatcher"
	"github.com/OCAP2/movement/internal/logging"
	"github.com/OCAP2/movement/internal/region"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/google/uuid"
)

// crossing is the relation of one leg to one region.
type crossing struct {
	region    *region.Region
	segments  []core.RegionMovementSegment
	wasInside bool
	isInside  bool
}

// leg is a measured checkpoint leg ready to commit. path[0] and
// measured[0] are the position the leg starts from.
type leg struct {
	path      []core.Waypoint
	measured  []core.MeasuredWaypoint
	crossings []crossing
}

// Move constrains the requested waypoints, then commits the path one
// checkpoint leg at a time. It returns once the movement completed, paused
// or ended. The result is false when nothing was moved, a PRE_MOVE handler
// vetoed a leg or the movement was stopped. A preview request is constrained
// only; its result reports whether the token could move at all.
func (e *Engine) Move(ctx context.Context, req core.MoveRequest) (bool, error) {
	if req.Method == "" {
		req.Method = core.MethodAPI
	}
	if !req.Method.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
	t, ok := e.deps.Tokens.Get(req.TokenID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTokenNotFound, req.TokenID)
	}

	m := e.moverFor(req.TokenID)
	if e.moving(m) {
		return false, fmt.Errorf("%w: %s", ErrMovementInProgress, req.TokenID)
	}

	path, constrained, err := e.constrain(t, req.Waypoints, req.Constrain)
	if err != nil {
		return false, err
	}
	if constrained {
		e.deps.Logger.Debug("movement constrained", "token", req.TokenID, "waypoints", len(path))
	}
	if req.Constrain.Preview {
		return len(path) > 1, nil
	}
	if len(path) < 2 {
		return false, nil
	}
	path[len(path)-1].Checkpoint = true

	st := continuation.New(uuid.NewString(), req.TokenID, req.UserID, path)

	m.mu.Lock()
	if m.state != nil && !m.state.Status().Terminal() {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrMovementInProgress, req.TokenID)
	}
	m.state = st
	m.request = req
	m.version++
	m.mu.Unlock()

	e.active.Inc()
	e.movements.DeleteToken(req.TokenID)
	e.movements.Set(st.MovementID, req.TokenID)
	e.deps.Logger.Info("movement started",
		"token", req.TokenID,
		"movement", st.MovementID,
		"user", req.UserID,
		"method", req.Method,
		"waypoints", len(path)-1)

	return e.advance(ctx, m, st)
}

func (e *Engine) moving(m *mover) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil && !m.state.Status().Terminal()
}

// advance commits the legs of st while it may continue. Only one goroutine
// drives a movement at a time; a second caller returns immediately and the
// driving one picks up any release it made. A driver whose movement was
// replaced leaves the new one to its own caller.
func (e *Engine) advance(ctx context.Context, m *mover, st *continuation.State) (bool, error) {
	m.mu.Lock()
	if m.state != st {
		m.mu.Unlock()
		return false, nil
	}
	if m.driver == st {
		m.mu.Unlock()
		return true, nil
	}
	m.driver = st
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if m.state != st || !st.CanAdvance() {
			if m.driver == st {
				m.driver = nil
			}
			ok := st.Status() != continuation.StatusStopped
			m.mu.Unlock()
			return ok, nil
		}
		pending := slices.Clone(st.NextLeg())
		start := st.Position
		version := m.version
		req := m.request
		m.mu.Unlock()

		if err := ctx.Err(); err != nil {
			e.halt(m, st, "context ended")
			return false, err
		}
		lctx := logging.With(ctx, slog.String("token", m.tokenID), slog.String("movement", st.MovementID))

		t, ok := e.deps.Tokens.Get(m.tokenID)
		if !ok {
			e.halt(m, st, "token removed")
			return false, fmt.Errorf("%w: %s", ErrTokenNotFound, m.tokenID)
		}
		l, err := e.planLeg(t.History, st, start, pending)
		if err != nil {
			e.halt(m, st, "measurement failed")
			return false, fmt.Errorf("failed to measure leg of %s: %w", st.MovementID, err)
		}
		if !e.allowLeg(lctx, st, l) {
			e.halt(m, st, "vetoed")
			return false, nil
		}

		m.mu.Lock()
		if m.state != st || m.version != version || !st.CanAdvance() {
			// paused, stopped or replaced while handlers ran
			m.mu.Unlock()
			continue
		}
		commit, err := e.commitLeg(m, st, req, l)
		if err != nil {
			e.stopLocked(m, st)
			m.driver = nil
			m.mu.Unlock()
			return false, err
		}
		m.mu.Unlock()

		e.publish(core.TopicCommit, commit)
		e.fireEvents(lctx, m, st, l)
	}
}

// planLeg measures the leg from start through pending and relates it to
// every region of the scene.
func (e *Engine) planLeg(history []core.MeasuredWaypoint, st *continuation.State, start core.Waypoint, pending []core.Waypoint) (leg, error) {
	path := make([]core.Waypoint, 0, len(pending)+1)
	path = append(path, start)
	path = append(path, pending...)

	res, err := e.measure(history, path)
	if err != nil {
		return leg{}, err
	}
	if len(res.Waypoints) != len(path) {
		return leg{}, fmt.Errorf("measured %d waypoints for a leg of %d", len(res.Waypoints), len(path))
	}
	for k := range res.Waypoints {
		res.Waypoints[k].MovementID = st.MovementID
		res.Waypoints[k].UserID = st.UserID
	}

	l := leg{path: path, measured: res.Waypoints}
	g := e.deps.Scene.Grid()
	end := path[len(path)-1]
	for _, r := range e.deps.Scene.Regions() {
		c := crossing{
			region:    r,
			segments:  e.segmenter.Segmentize(r, path),
			wasInside: region.TestInsideRegion(g, r, start),
			isInside:  region.TestInsideRegion(g, r, end),
		}
		if len(c.segments) == 0 && !c.wasInside && !c.isInside {
			continue
		}
		l.crossings = append(l.crossings, c)
	}
	return l, nil
}

// allowLeg asks PRE_MOVE handlers of every region the leg touches. Region
// behaviors are asked first, then synchronous PRE_MOVE handlers on the bus;
// a bus handler vetoes by returning false.
func (e *Engine) allowLeg(ctx context.Context, st *continuation.State, l leg) bool {
	for _, c := range l.crossings {
		if len(c.segments) == 0 {
			continue
		}
		pm := region.PreMove{
			Region:   c.region,
			TokenID:  st.TokenID,
			UserID:   st.UserID,
			Path:     l.path,
			Segments: c.segments,
		}
		for _, b := range c.region.Behaviors() {
			h, ok := b.(region.PreMoveHandler)
			if !ok {
				continue
			}
			if !h.AllowMove(ctx, pm) {
				e.deps.Logger.InfoContext(ctx, "movement vetoed", "region", c.region.ID(), "behavior", h.Name())
				return false
			}
		}

		topic := string(core.EventPreMove)
		if e.deps.Bus == nil || !e.deps.Bus.HasHandler(topic) {
			continue
		}
		ev := e.regionEvent(st, c, core.EventPreMove)
		res, err := e.deps.Bus.Dispatch(dispatcher.Event{Topic: topic, Payload: ev, Timestamp: ev.Time})
		if err != nil {
			e.deps.Logger.WarnContext(ctx, "PRE_MOVE handler failed", "region", c.region.ID(), "error", err)
			continue
		}
		if allowed, ok := res.(bool); ok && !allowed {
			e.deps.Logger.InfoContext(ctx, "movement vetoed", "region", c.region.ID())
			return false
		}
	}
	return true
}

// commitLeg persists the leg and applies it to the continuation state and
// the token. m.mu must be held.
func (e *Engine) commitLeg(m *mover, st *continuation.State, req core.MoveRequest, l leg) (core.MovementCommit, error) {
	passed := l.measured[1:]

	t, _ := e.deps.Tokens.Get(m.tokenID)
	added := passed
	if n := len(t.History); n == 0 || !t.History[n-1].SamePosition(l.path[0]) {
		added = l.measured
	}

	commit := core.MovementCommit{
		TokenID:    m.tokenID,
		MovementID: st.MovementID,
		UserID:     st.UserID,
		Method:     req.Method,
		AutoRotate: req.AutoRotate,
		ShowRuler:  req.ShowRuler,
		Waypoints:  slices.Clone(added),
		Pending:    slices.Clone(st.Pending[len(passed):]),
		Time:       e.deps.Now(),
	}
	if err := e.deps.Backend.CommitMovement(&commit); err != nil {
		return core.MovementCommit{}, fmt.Errorf("failed to commit leg of %s: %w", st.MovementID, err)
	}
	if err := st.RecordPassed(passed); err != nil {
		return core.MovementCommit{}, err
	}

	dest := passed[len(passed)-1].Waypoint
	dest.Checkpoint, dest.Intermediate = false, false
	e.deps.Tokens.Update(m.tokenID, func(t *core.Token) {
		t.Position = dest
		t.Rendered = dest.Position()
		t.History = append(t.History, added...)
	})
	m.version++

	distance, cost := commit.Totals()
	e.deps.Logger.Debug("leg committed",
		"token", m.tokenID,
		"movement", st.MovementID,
		"waypoints", len(passed),
		"distance", distance,
		"cost", cost,
		"pending", len(st.Pending))

	if st.Status() == continuation.StatusCompleted {
		e.active.Dec()
		e.deps.Logger.Info("movement completed",
			"token", m.tokenID,
			"movement", st.MovementID,
			"x", dest.X,
			"y", dest.Y)
	}
	return commit, nil
}

// halt stops st if it is still the movement of m and releases its driver.
func (e *Engine) halt(m *mover, st *continuation.State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driver == st {
		m.driver = nil
	}
	if m.state != st || st.Status().Terminal() {
		return
	}
	e.stopLocked(m, st)
	e.deps.Logger.Info("movement stopped", "token", m.tokenID, "movement", st.MovementID, "reason", reason)
}

// stopLocked ends st. m.mu must be held.
func (e *Engine) stopLocked(m *mover, st *continuation.State) bool {
	if st.Status().Terminal() {
		return false
	}
	_ = st.Stop()
	m.version++
	e.active.Dec()
	return true
}
