package movement

import (
	"context"
	"fmt"
	"sync"

	"github.com/OCAP2/movement/internal/continuation"
	"github.com/OCAP2/movement/internal/dispatcher"
	"github.com/OCAP2/movement/internal/region"
	"github.com/OCAP2/movement/pkg/core"
)

// control is the MovementControl handed to region behaviors for one
// movement. It has no effect once the token started another movement.
type control struct {
	e  *Engine
	m  *mover
	st *continuation.State
}

var _ region.MovementControl = (*control)(nil)

func (c *control) MovementID() string { return c.st.MovementID }

func (c *control) Pause() func() {
	c.m.mu.Lock()
	if c.m.state != c.st {
		c.m.mu.Unlock()
		return func() {}
	}
	t, err := c.st.Pause("")
	c.m.mu.Unlock()
	if err != nil {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.e.release(context.Background(), c.m, c.st, t) })
	}
}

func (c *control) PauseWithKey(key string) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.state != c.st {
		return
	}
	if _, err := c.st.Pause(key); err == nil {
		c.e.deps.Logger.Debug("movement paused", "token", c.m.tokenID, "movement", c.st.MovementID, "key", key)
	}
}

// PauseMovement holds the movement of tokenID until the returned function is
// called. Only the user who started the movement may pause it.
func (e *Engine) PauseMovement(tokenID, userID string) (ResumeFunc, error) {
	m, st, err := e.owned(tokenID, userID)
	if err != nil {
		return nil, err
	}
	t, err := st.Pause("")
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.deps.Logger.Debug("movement paused", "token", tokenID, "movement", st.MovementID)

	var once sync.Once
	return func() <-chan bool {
		ch := make(chan bool, 1)
		go func() {
			resumed := false
			once.Do(func() { resumed = e.release(context.Background(), m, st, t) })
			ch <- resumed
		}()
		return ch
	}, nil
}

// PauseMovementByKey holds the movement of tokenID until ResumeMovement is
// called with the same key. It returns the movement id to resume.
func (e *Engine) PauseMovementByKey(tokenID, userID, key string) (string, error) {
	m, st, err := e.owned(tokenID, userID)
	if err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	if _, err := st.Pause(key); err != nil {
		return "", err
	}
	e.deps.Logger.Debug("movement paused", "token", tokenID, "movement", st.MovementID, "key", key)
	return st.MovementID, nil
}

// ResumeMovement releases every pause registered with key. Once no pause is
// outstanding the remaining legs are committed before it returns.
func (e *Engine) ResumeMovement(ctx context.Context, movementID, userID, key string) error {
	tokenID, ok := e.movements.Get(movementID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMovement, movementID)
	}
	m, st, err := e.owned(tokenID, userID)
	if err != nil {
		return err
	}
	if st.MovementID != movementID {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoMovement, movementID)
	}
	free, err := st.ReleaseKey(key)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if !free {
		return nil
	}
	e.deps.Logger.Debug("movement resumed", "token", tokenID, "movement", movementID, "key", key)
	_, err = e.advance(ctx, m, st)
	return err
}

// StopMovement ends the movement of tokenID where it currently stands.
// Stopping a stopped movement is not an error.
func (e *Engine) StopMovement(tokenID, userID string) error {
	m := e.lookup(tokenID)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrNoMovement, tokenID)
	}
	m.mu.Lock()
	st := m.state
	if st == nil || st.Status() == continuation.StatusCompleted {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoMovement, tokenID)
	}
	if err := st.Owner(userID); err != nil {
		m.mu.Unlock()
		return err
	}
	stopped := e.stopLocked(m, st)
	m.mu.Unlock()

	e.pathfinder.Cancel(tokenID)
	if stopped {
		e.deps.Logger.Info("movement stopped", "token", tokenID, "movement", st.MovementID, "user", userID)
	}
	return nil
}

// HandleDisconnect stops every movement started by userID, regardless of
// outstanding pauses. Tokens stay where they are. It returns the number of
// movements stopped.
func (e *Engine) HandleDisconnect(userID string) int {
	e.mu.Lock()
	movers := make([]*mover, 0, len(e.movers))
	for _, m := range e.movers {
		movers = append(movers, m)
	}
	e.mu.Unlock()

	n := 0
	for _, m := range movers {
		m.mu.Lock()
		st := m.state
		if st == nil || st.UserID != userID || !e.stopLocked(m, st) {
			m.mu.Unlock()
			continue
		}
		pos := st.Position
		m.mu.Unlock()

		e.pathfinder.Cancel(m.tokenID)
		e.deps.Logger.Info("movement stopped, user disconnected",
			"token", m.tokenID,
			"movement", st.MovementID,
			"user", userID,
			"x", pos.X,
			"y", pos.Y)
		n++
	}
	return n
}

// owned returns the active movement of tokenID with m.mu held, after
// checking that userID started it.
func (e *Engine) owned(tokenID, userID string) (*mover, *continuation.State, error) {
	m := e.lookup(tokenID)
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoMovement, tokenID)
	}
	m.mu.Lock()
	st := m.state
	var err error
	switch {
	case st == nil || st.Status() == continuation.StatusCompleted:
		err = fmt.Errorf("%w: %s", ErrNoMovement, tokenID)
	case st.Owner(userID) != nil:
		err = st.Owner(userID)
	case st.Status() == continuation.StatusStopped:
		err = fmt.Errorf("%w: %s", ErrMovementStopped, st.MovementID)
	}
	if err != nil {
		m.mu.Unlock()
		return nil, nil, err
	}
	return m, st, nil
}

// release releases one ticket and continues the movement when it was the
// last one. It reports whether the movement went on.
func (e *Engine) release(ctx context.Context, m *mover, st *continuation.State, t continuation.Ticket) bool {
	m.mu.Lock()
	if m.state != st {
		m.mu.Unlock()
		return false
	}
	free, err := st.Release(t)
	m.mu.Unlock()
	if err != nil || !free {
		return false
	}

	ok, err := e.advance(ctx, m, st)
	if err != nil {
		e.deps.Logger.Error("failed to continue movement", "token", m.tokenID, "movement", st.MovementID, "error", err)
		return false
	}
	return ok
}

func (e *Engine) regionEvent(st *continuation.State, c crossing, name core.RegionEventName) core.RegionEvent {
	return core.RegionEvent{
		RegionID: c.region.ID(),
		UserID:   st.UserID,
		Name:     name,
		Data: map[string]any{
			"movementId": st.MovementID,
			"tokenId":    st.TokenID,
			"segments":   c.segments,
		},
		MovingObjectIDs: []string{st.TokenID},
		Time:            e.deps.Now(),
	}
}

// fireEvents delivers the region events of a committed leg: first to the
// behaviors of the region, then to the bus. Behaviors run without any mover
// lock held and may pause the movement through their control.
func (e *Engine) fireEvents(ctx context.Context, m *mover, st *continuation.State, l leg) {
	ctl := &control{e: e, m: m, st: st}
	for _, c := range l.crossings {
		for _, name := range region.Events(c.segments, c.wasInside, c.isInside) {
			ev := e.regionEvent(st, c, name)
			e.deps.Logger.DebugContext(ctx, "region event", "region", c.region.ID(), "event", name)
			for _, b := range c.region.Behaviors() {
				if h, ok := b.(region.EventHandler); ok {
					h.HandleEvent(ctx, ev, ctl)
				}
			}
			e.publish(string(name), ev)
		}
	}
}

// publish hands payload to the bus when anything listens on topic.
func (e *Engine) publish(topic string, payload any) {
	bus := e.deps.Bus
	if bus == nil || !bus.HasHandler(topic) {
		return
	}
	if _, err := bus.Dispatch(dispatcher.Event{Topic: topic, Payload: payload, Timestamp: e.deps.Now()}); err != nil {
		e.deps.Logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
