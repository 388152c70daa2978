// pkg/core/waypoint.go
package core

import (
	"fmt"
	"strings"
)

// Point is a position on the playing surface in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElevatedPoint is a Point with an elevation in grid units.
type ElevatedPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Elevation float64 `json:"elevation"`
}

// GridOffset addresses a grid cell by row (I) and column (J).
type GridOffset struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Add returns the component-wise sum of two offsets.
func (o GridOffset) Add(d GridOffset) GridOffset {
	return GridOffset{I: o.I + d.I, J: o.J + d.J}
}

// Sub returns the component-wise difference of two offsets.
func (o GridOffset) Sub(d GridOffset) GridOffset {
	return GridOffset{I: o.I - d.I, J: o.J - d.J}
}

// TokenShape is the footprint shape of a token on hexagonal grids.
type TokenShape int

const (
	ShapeEllipse1 TokenShape = iota
	ShapeEllipse2
	ShapeTrapezoid1
	ShapeTrapezoid2
	ShapeRectangle1
	ShapeRectangle2
)

var shapeNames = map[TokenShape]string{
	ShapeEllipse1:   "ellipse1",
	ShapeEllipse2:   "ellipse2",
	ShapeTrapezoid1: "trapezoid1",
	ShapeTrapezoid2: "trapezoid2",
	ShapeRectangle1: "rectangle1",
	ShapeRectangle2: "rectangle2",
}

// String returns the lower-case name of the shape.
func (s TokenShape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Valid reports whether s is a recognized shape.
func (s TokenShape) Valid() bool {
	_, ok := shapeNames[s]
	return ok
}

// ParseTokenShape parses a shape name case-insensitively.
func ParseTokenShape(name string) (TokenShape, error) {
	for shape, n := range shapeNames {
		if strings.EqualFold(n, name) {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("unknown token shape %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s TokenShape) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown token shape %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TokenShape) UnmarshalText(text []byte) error {
	shape, err := ParseTokenShape(string(text))
	if err != nil {
		return err
	}
	*s = shape
	return nil
}

// Waypoint is one point of a movement path together with the token footprint
// at that instant. X and Y are the top-left corner of the token in pixels.
type Waypoint struct {
	X            int        `json:"x"`
	Y            int        `json:"y"`
	Elevation    float64    `json:"elevation"`
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	Shape        TokenShape `json:"shape"`
	Action       string     `json:"action"`
	Snapped      bool       `json:"snapped"`
	Explicit     bool       `json:"explicit"`
	Checkpoint   bool       `json:"checkpoint"`
	Intermediate bool       `json:"intermediate,omitempty"`
}

// SamePosition reports whether two waypoints share position and elevation.
func (w Waypoint) SamePosition(o Waypoint) bool {
	return w.X == o.X && w.Y == o.Y && w.Elevation == o.Elevation
}

// Position returns the top-left corner as a Point.
func (w Waypoint) Position() Point {
	return Point{X: float64(w.X), Y: float64(w.Y)}
}

// WaypointInput is the wire shape of a requested waypoint. Nil fields are
// defaulted from the previous waypoint or from the token's current state.
type WaypointInput struct {
	X          *int        `json:"x,omitempty"`
	Y          *int        `json:"y,omitempty"`
	Elevation  *float64    `json:"elevation,omitempty"`
	Width      *float64    `json:"width,omitempty"`
	Height     *float64    `json:"height,omitempty"`
	Shape      *TokenShape `json:"shape,omitempty"`
	Action     *string     `json:"action,omitempty"`
	Snapped    *bool       `json:"snapped,omitempty"`
	Explicit   *bool       `json:"explicit,omitempty"`
	Checkpoint *bool       `json:"checkpoint,omitempty"`
}

// InputFrom converts a fully specified waypoint back into its wire shape.
func InputFrom(w Waypoint) WaypointInput {
	x, y := w.X, w.Y
	elev, width, height := w.Elevation, w.Width, w.Height
	shape, action := w.Shape, w.Action
	snapped, explicit, checkpoint := w.Snapped, w.Explicit, w.Checkpoint
	return WaypointInput{
		X:          &x,
		Y:          &y,
		Elevation:  &elev,
		Width:      &width,
		Height:     &height,
		Shape:      &shape,
		Action:     &action,
		Snapped:    &snapped,
		Explicit:   &explicit,
		Checkpoint: &checkpoint,
	}
}

// At returns a WaypointInput that only specifies a position.
func At(x, y int) WaypointInput {
	return WaypointInput{X: &x, Y: &y}
}

// MeasuredWaypoint is a waypoint enriched with the measurement of the segment
// that ends at it.
type MeasuredWaypoint struct {
	Waypoint
	Cost       float64 `json:"cost"`
	Distance   float64 `json:"distance"`
	Spaces     int     `json:"spaces"`
	Diagonals  int     `json:"diagonals"`
	MovementID string  `json:"movementId"`
	UserID     string  `json:"userId"`
}

// StripIntermediate returns the waypoints that were not synthesized by
// measurement or segmentation. The input is left untouched.
func StripIntermediate(path []Waypoint) []Waypoint {
	out := make([]Waypoint, 0, len(path))
	for _, w := range path {
		if w.Intermediate {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ExplicitOnly returns the waypoints that were placed by a user.
func ExplicitOnly(path []Waypoint) []Waypoint {
	out := make([]Waypoint, 0, len(path))
	for _, w := range path {
		if w.Explicit {
			out = append(out, w)
		}
	}
	return out
}

// TerrainEffect describes a region-provided modification applied to one sub-segment.
type TerrainEffect struct {
	RegionID   string  `json:"regionId"`
	Behavior   string  `json:"behavior"`
	Multiplier float64 `json:"multiplier"`
}

// SegmentData is the context passed to cost functions for one step.
type SegmentData struct {
	Action    string
	Width     float64
	Height    float64
	Shape     TokenShape
	Elevation float64
	Teleport  bool
	Terrain   []TerrainEffect
	// History is read-only context of prior movement.
	History []MeasuredWaypoint
}
