// Package region implements named zones on the playing surface: containment
// tests, splitting movement paths into ENTER, EXIT and MOVE segments, and the
// behaviors that react to or modify movement through a zone.
package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OCAP2/movement/internal/geo"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/pkg/core"
)

var ErrNoShapes = errors.New("region has no solid shape")

// ShapeType of a region shape.
type ShapeType int

const (
	ShapeRectangle ShapeType = iota
	ShapeEllipse
	ShapePolygon
)

func ParseShapeType(name string) (ShapeType, error) {
	switch strings.ToLower(name) {
	case "rectangle", "rect":
		return ShapeRectangle, nil
	case "ellipse", "circle":
		return ShapeEllipse, nil
	case "polygon":
		return ShapePolygon, nil
	}
	return 0, fmt.Errorf("unknown region shape %q", name)
}

// Shape is one part of a region. Rectangles use X, Y as the top-left corner;
// ellipses use X, Y as the centre with RadiusX, RadiusY. Holes are subtracted
// from the solid shapes.
type Shape struct {
	Type     ShapeType
	X, Y     float64
	Width    float64
	Height   float64
	RadiusX  float64
	RadiusY  float64
	Rotation float64
	Points   []core.Point
	Hole     bool
}

const ellipseSegments = 48

func (s Shape) polygon() (geo.Polygon, error) {
	switch s.Type {
	case ShapeRectangle:
		return geo.NewPolygon(geo.Rectangle(s.X, s.Y, s.Width, s.Height, s.Rotation))
	case ShapeEllipse:
		return geo.NewPolygon(geo.Ellipse(s.X, s.Y, s.RadiusX, s.RadiusY, s.Rotation, ellipseSegments))
	case ShapePolygon:
		return geo.NewPolygon(s.Points)
	}
	return geo.Polygon{}, fmt.Errorf("unknown region shape %d", s.Type)
}

// Elevation bounds a region vertically. Nil bounds are open.
type Elevation struct {
	Bottom *float64
	Top    *float64
}

func (e Elevation) Contains(v float64) bool {
	if e.Bottom != nil && v < *e.Bottom {
		return false
	}
	if e.Top != nil && v > *e.Top {
		return false
	}
	return true
}

// Visibility of a region to players.
type Visibility int

const (
	VisibilityLayer Visibility = iota
	VisibilityGamemaster
	VisibilityAlways
)

// Config describes a region before compilation.
type Config struct {
	ID         string
	Name       string
	Shapes     []Shape
	Elevation  Elevation
	Visibility Visibility
	Behaviors  []Behavior
}

// Region is a compiled, read-only region.
type Region struct {
	cfg    Config
	solids []geo.Polygon
	holes  []geo.Polygon
	bounds geo.Bounds
}

// New compiles the region shapes.
func New(cfg Config) (*Region, error) {
	r := &Region{cfg: cfg, bounds: geo.BoundsOf(nil)}
	for i, s := range cfg.Shapes {
		p, err := s.polygon()
		if err != nil {
			return nil, fmt.Errorf("region %s shape %d: %w", cfg.ID, i, err)
		}
		if s.Hole {
			r.holes = append(r.holes, p)
			continue
		}
		r.solids = append(r.solids, p)
		r.bounds = r.bounds.Union(p.Bounds())
	}
	if len(r.solids) == 0 {
		return nil, fmt.Errorf("region %s: %w", cfg.ID, ErrNoShapes)
	}
	return r, nil
}

func (r *Region) ID() string              { return r.cfg.ID }
func (r *Region) Name() string            { return r.cfg.Name }
func (r *Region) Elevation() Elevation    { return r.cfg.Elevation }
func (r *Region) Visibility() Visibility  { return r.cfg.Visibility }
func (r *Region) Behaviors() []Behavior   { return r.cfg.Behaviors }
func (r *Region) Bounds() geo.Bounds      { return r.bounds }
func (r *Region) polygons() []geo.Polygon { return append(append([]geo.Polygon(nil), r.solids...), r.holes...) }
func (r *Region) String() string          { return r.cfg.ID }

// Effects is the union of the effects of all behaviors.
func (r *Region) Effects() Effect {
	var e Effect
	for _, b := range r.cfg.Behaviors {
		e |= b.Effects()
	}
	return e
}

// ModifiesMovement reports whether any behavior changes movement cost.
func (r *Region) ModifiesMovement() bool {
	return r.Effects()&EffectCost != 0
}

// TestPoint reports whether a point at an elevation is inside the region.
func (r *Region) TestPoint(p core.ElevatedPoint) bool {
	if !r.cfg.Elevation.Contains(p.Elevation) {
		return false
	}
	return r.containsXY(core.Point{X: p.X, Y: p.Y})
}

func (r *Region) containsXY(p core.Point) bool {
	if !r.bounds.Contains(p) {
		return false
	}
	inside := false
	for _, s := range r.solids {
		if s.Contains(p) {
			inside = true
			break
		}
	}
	if !inside {
		return false
	}
	for _, h := range r.holes {
		if h.Contains(p) && !onBoundary(h, p) {
			return false
		}
	}
	return true
}

// onBoundary keeps hole edges inside the region so solid and hole boundaries
// behave the same way.
func onBoundary(p geo.Polygon, pt core.Point) bool {
	pts := p.Points()
	for k := range pts {
		a, b := pts[k], pts[(k+1)%len(pts)]
		if geo.Orientation(a, b, pt) != 0 {
			continue
		}
		if geo.BoundsOf([]core.Point{a, b}).Contains(pt) {
			return true
		}
	}
	return false
}

// TestInsideRegion tests the token centre of a waypoint. Only the footprint
// stored in the waypoint is consulted.
func TestInsideRegion(g grid.Grid, r *Region, w core.Waypoint) bool {
	c := g.TokenCenter(w)
	return r.TestPoint(core.ElevatedPoint{X: c.X, Y: c.Y, Elevation: w.Elevation})
}
