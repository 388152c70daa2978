// Package continuation tracks a movement that is committed one checkpoint
// at a time. A State holds the remaining waypoints between commits, the
// pauses that hold it, and who may control it.
package continuation

import (
	"errors"
	"fmt"

	"github.com/OCAP2/movement/pkg/core"
)

var (
	ErrInvalidTransition = errors.New("invalid movement transition")
	ErrUnknownBarrier    = errors.New("no pause registered with that key")
	ErrNotOwner          = errors.New("movement belongs to another user")
)

// Status of a movement.
type Status int

const (
	StatusIdle Status = iota
	StatusMoving
	StatusPaused
	StatusStopped
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusMoving:
		return "moving"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted
}

// State of one movement. It is not safe for concurrent use; callers
// serialize access per mover.
type State struct {
	MovementID string
	TokenID    string
	UserID     string

	// Position is where the token stands between legs.
	Position core.Waypoint
	Pending  []core.Waypoint
	Passed   []core.MeasuredWaypoint

	status  Status
	barrier Barrier
}

// New starts tracking a movement along path. path[0] is the current position.
func New(movementID, tokenID, userID string, path []core.Waypoint) *State {
	s := &State{MovementID: movementID, TokenID: tokenID, UserID: userID}
	if len(path) > 0 {
		s.Position = path[0]
		s.Pending = append([]core.Waypoint(nil), path[1:]...)
	}
	return s
}

func (s *State) Status() Status { return s.status }

// Barrier exposes the outstanding pauses read-only.
func (s *State) Outstanding() map[string]int { return s.barrier.Outstanding() }

// Owner checks that userID initiated the movement.
func (s *State) Owner(userID string) error {
	if userID != s.UserID {
		return fmt.Errorf("%w: %s", ErrNotOwner, s.MovementID)
	}
	return nil
}

// NextLeg returns the pending waypoints up to and including the next
// checkpoint, or all of them if none is a checkpoint.
func (s *State) NextLeg() []core.Waypoint {
	for i, w := range s.Pending {
		if w.Checkpoint {
			return s.Pending[:i+1]
		}
	}
	return s.Pending
}

// CanAdvance reports whether the next leg may be committed now.
func (s *State) CanAdvance() bool {
	return (s.status == StatusIdle || s.status == StatusMoving) &&
		len(s.Pending) > 0 && s.barrier.Pending() == 0
}

// RecordPassed records a committed leg. The first commit moves the state
// from Idle to Moving; committing the last leg completes it.
func (s *State) RecordPassed(leg []core.MeasuredWaypoint) error {
	if s.status != StatusIdle && s.status != StatusMoving {
		return fmt.Errorf("%w: commit while %s", ErrInvalidTransition, s.status)
	}
	n := len(leg)
	if n > len(s.Pending) {
		return fmt.Errorf("%w: leg of %d waypoints with %d pending", ErrInvalidTransition, n, len(s.Pending))
	}
	s.Passed = append(s.Passed, leg...)
	s.Pending = s.Pending[n:]
	if n > 0 {
		s.Position = leg[n-1].Waypoint
	}
	s.status = StatusMoving
	if len(s.Pending) == 0 {
		s.status = StatusCompleted
		s.barrier.clear()
	}
	return nil
}

// Pause registers a pause. The state is paused until every pause is
// released, including one taken before the first leg was committed.
func (s *State) Pause(key string) (Ticket, error) {
	if s.status.Terminal() {
		return Ticket{}, fmt.Errorf("%w: pause while %s", ErrInvalidTransition, s.status)
	}
	t := s.barrier.Register(key)
	s.status = StatusPaused
	return t, nil
}

// Release releases a ticket. It reports whether the movement may continue.
func (s *State) Release(t Ticket) (bool, error) {
	if s.status.Terminal() {
		return false, fmt.Errorf("%w: resume while %s", ErrInvalidTransition, s.status)
	}
	s.barrier.Release(t)
	return s.resumeIfClear(), nil
}

// ReleaseKey releases every pause registered with key.
func (s *State) ReleaseKey(key string) (bool, error) {
	if s.status.Terminal() {
		return false, fmt.Errorf("%w: resume while %s", ErrInvalidTransition, s.status)
	}
	if !s.barrier.ReleaseKey(key) {
		return false, fmt.Errorf("%w: %q", ErrUnknownBarrier, key)
	}
	return s.resumeIfClear(), nil
}

func (s *State) resumeIfClear() bool {
	if s.barrier.Pending() > 0 {
		return false
	}
	if s.status == StatusPaused {
		s.status = StatusMoving
		if len(s.Passed) == 0 {
			s.status = StatusIdle
		}
	}
	return s.status == StatusMoving || s.status == StatusIdle
}

// Stop ends the movement regardless of outstanding pauses. Stopping twice
// is not an error.
func (s *State) Stop() error {
	switch s.status {
	case StatusCompleted:
		return fmt.Errorf("%w: stop while completed", ErrInvalidTransition)
	case StatusStopped:
		return nil
	}
	s.status = StatusStopped
	s.Pending = nil
	s.barrier.clear()
	return nil
}
