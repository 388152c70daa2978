// pkg/core/events.go
package core

import (
	"fmt"
	"time"
)

// RegionSegmentType classifies a region movement segment.
type RegionSegmentType int

const (
	SegmentEnter RegionSegmentType = iota + 1
	SegmentExit
	SegmentMove
)

// String returns the upper-case name of the segment type.
func (t RegionSegmentType) String() string {
	switch t {
	case SegmentEnter:
		return "ENTER"
	case SegmentExit:
		return "EXIT"
	case SegmentMove:
		return "MOVE"
	default:
		return fmt.Sprintf("SEGMENT(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t RegionSegmentType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// RegionMovementSegment is a portion of a movement path relative to one region.
// ENTER starts outside and ends inside, EXIT starts inside and ends outside,
// MOVE starts and ends inside.
type RegionMovementSegment struct {
	Type     RegionSegmentType `json:"type"`
	From     Waypoint          `json:"from"`
	To       Waypoint          `json:"to"`
	Teleport bool              `json:"teleport,omitempty"`
}

// RegionEventName identifies a region crossing event.
type RegionEventName string

const (
	EventEnter      RegionEventName = "ENTER"
	EventExit       RegionEventName = "EXIT"
	EventMoveIn     RegionEventName = "MOVE_IN"
	EventMoveOut    RegionEventName = "MOVE_OUT"
	EventMoveWithin RegionEventName = "MOVE_WITHIN"
	EventPreMove    RegionEventName = "PRE_MOVE"
)

// TopicCommit is the event bus topic on which committed legs are published.
// Region events are published under their event name.
const TopicCommit = "COMMIT"

// RegionEvents lists the events derived from a committed leg, in delivery order.
var RegionEvents = []RegionEventName{EventEnter, EventMoveIn, EventMoveWithin, EventMoveOut, EventExit}

// RegionEvent is emitted toward game-logic collaborators after a checkpoint commits.
type RegionEvent struct {
	RegionID        string          `json:"regionId"`
	UserID          string          `json:"userId"`
	Name            RegionEventName `json:"eventName"`
	Data            map[string]any  `json:"eventData"`
	MovingObjectIDs []string        `json:"movingObjectIds"`
	Time            time.Time       `json:"time"`
}
