// pkg/core/movement.go
package core

import (
	"fmt"
	"math"
	"time"
)

// MovementMethod records how a movement request was produced.
type MovementMethod string

const (
	MethodAPI      MovementMethod = "api"
	MethodConfig   MovementMethod = "config"
	MethodDragging MovementMethod = "dragging"
	MethodKeyboard MovementMethod = "keyboard"
	MethodPaste    MovementMethod = "paste"
	MethodUndo     MovementMethod = "undo"
)

// Valid reports whether m is a known method. The empty method is treated as api.
func (m MovementMethod) Valid() bool {
	switch m {
	case "", MethodAPI, MethodConfig, MethodDragging, MethodKeyboard, MethodPaste, MethodUndo:
		return true
	}
	return false
}

// ConstrainOptions control how a requested path is constrained before commit.
type ConstrainOptions struct {
	Preview     bool `json:"preview"`
	IgnoreWalls bool `json:"ignoreWalls"`
	IgnoreCost  bool `json:"ignoreCost"`
}

// MoveRequest is a movement commit request submitted by the UI layer.
type MoveRequest struct {
	TokenID    string           `json:"tokenId"`
	UserID     string           `json:"userId"`
	Waypoints  []WaypointInput  `json:"waypoints"`
	Method     MovementMethod   `json:"method"`
	AutoRotate bool             `json:"autoRotate"`
	ShowRuler  bool             `json:"showRuler"`
	Constrain  ConstrainOptions `json:"constrainOptions"`
}

// MovementCommit is one checkpoint leg handed to the persistence layer.
type MovementCommit struct {
	TokenID    string             `json:"tokenId"`
	MovementID string             `json:"movementId"`
	UserID     string             `json:"userId"`
	Method     MovementMethod     `json:"method"`
	AutoRotate bool               `json:"autoRotate"`
	ShowRuler  bool               `json:"showRuler"`
	Waypoints  []MeasuredWaypoint `json:"waypoints"`
	Pending    []Waypoint         `json:"pending"`
	Time       time.Time          `json:"time"`
}

// Destination returns the last waypoint of the leg.
func (c MovementCommit) Destination() (Waypoint, bool) {
	if len(c.Waypoints) == 0 {
		return Waypoint{}, false
	}
	return c.Waypoints[len(c.Waypoints)-1].Waypoint, true
}

// Totals sums distance and cost over the leg.
func (c MovementCommit) Totals() (distance, cost float64) {
	for _, w := range c.Waypoints {
		distance += w.Distance
		cost += w.Cost
	}
	return distance, cost
}

// FiniteCosts returns a copy of path with infinite costs clamped to
// math.MaxFloat64 so the waypoints survive JSON encoding.
func FiniteCosts(path []MeasuredWaypoint) []MeasuredWaypoint {
	out := make([]MeasuredWaypoint, len(path))
	copy(out, path)
	for k := range out {
		out[k].Cost = Finite(out[k].Cost)
	}
	return out
}

// Finite clamps infinities to the largest finite float of the same sign.
func Finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// Token is the engine's view of a mobile game piece.
type Token struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Position holds the committed position and footprint.
	Position Waypoint `json:"position"`
	// Rendered is where the sprite is currently drawn. Planning never reads it.
	Rendered Point             `json:"-"`
	History  []MeasuredWaypoint `json:"history"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%d,%d)", t.ID, t.Position.X, t.Position.Y)
}
