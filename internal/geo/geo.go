package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/OCAP2/movement/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Region shapes are compiled to simplefeatures polygons for containment. Edge
// crossing parameters are computed directly since segmentation needs the
// position along the move, not just whether it intersects.

// ErrDegeneratePolygon is returned for rings with fewer than three distinct
// points and for rings that are not simple, such as a bow tie.
var ErrDegeneratePolygon = errors.New("degenerate polygon")

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoundsOf returns the bounding box of the points.
func BoundsOf(pts []core.Point) Bounds {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Extend grows the box to include p.
func (b Bounds) Extend(p core.Point) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

// Union returns the box covering both.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

func (b Bounds) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

func (b Bounds) Contains(p core.Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Overlaps reports whether the boxes share any point.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Polygon is a simple closed ring.
type Polygon struct {
	ring   []core.Point
	poly   geom.Polygon
	bounds Bounds
}

// NewPolygon builds a polygon from its vertices. The ring is closed
// automatically.
func NewPolygon(pts []core.Point) (Polygon, error) {
	ring := dedupe(pts)
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return Polygon{}, fmt.Errorf("%w: %d distinct points", ErrDegeneratePolygon, len(ring))
	}
	closed := append(append([]core.Point(nil), ring...), ring[0])
	ls, err := LineString(closed)
	if err != nil {
		return Polygon{}, fmt.Errorf("%w: %v", ErrDegeneratePolygon, err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ls})
	if err != nil {
		return Polygon{}, fmt.Errorf("%w: %v", ErrDegeneratePolygon, err)
	}
	return Polygon{ring: ring, poly: poly, bounds: BoundsOf(ring)}, nil
}

func dedupe(pts []core.Point) []core.Point {
	out := make([]core.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (p Polygon) Points() []core.Point { return p.ring }
func (p Polygon) Bounds() Bounds       { return p.bounds }

// Geometry exposes the compiled simplefeatures geometry.
func (p Polygon) Geometry() geom.Geometry { return p.poly.AsGeometry() }

// Contains reports whether pt lies inside the polygon or on its boundary.
func (p Polygon) Contains(pt core.Point) bool {
	if len(p.ring) == 0 || !p.bounds.Contains(pt) {
		return false
	}
	gp, err := Point(pt)
	if err != nil {
		return false
	}
	return geom.Intersects(p.poly.AsGeometry(), gp.AsGeometry())
}

// Crossings returns the parameters t in [0,1] at which the segment a→b meets
// an edge of the polygon, sorted and deduplicated.
func (p Polygon) Crossings(a, b core.Point) []float64 {
	if len(p.ring) == 0 || !p.bounds.Overlaps(BoundsOf([]core.Point{a, b})) {
		return nil
	}
	var ts []float64
	for k := range p.ring {
		c := p.ring[k]
		d := p.ring[(k+1)%len(p.ring)]
		if t, _, ok := SegmentIntersection(a, b, c, d); ok {
			ts = append(ts, t)
		}
	}
	return uniqueSorted(ts)
}

func uniqueSorted(ts []float64) []float64 {
	if len(ts) == 0 {
		return nil
	}
	sort.Float64s(ts)
	out := ts[:1]
	for _, t := range ts[1:] {
		if t-out[len(out)-1] > 1e-9 {
			out = append(out, t)
		}
	}
	return out
}

// Rectangle returns the corners of a rectangle with top-left (x, y), rotated
// by rotation degrees around its centre.
func Rectangle(x, y, width, height, rotation float64) []core.Point {
	pts := []core.Point{
		{X: x, Y: y},
		{X: x + width, Y: y},
		{X: x + width, Y: y + height},
		{X: x, Y: y + height},
	}
	if rotation == 0 {
		return pts
	}
	return rotate(pts, core.Point{X: x + width/2, Y: y + height/2}, rotation)
}

// Ellipse approximates an ellipse with the given number of vertices.
func Ellipse(cx, cy, rx, ry, rotation float64, segments int) []core.Point {
	if segments < 8 {
		segments = 8
	}
	pts := make([]core.Point, segments)
	for k := range pts {
		a := 2 * math.Pi * float64(k) / float64(segments)
		pts[k] = core.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)}
	}
	if rotation == 0 {
		return pts
	}
	return rotate(pts, core.Point{X: cx, Y: cy}, rotation)
}

func rotate(pts []core.Point, c core.Point, degrees float64) []core.Point {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	out := make([]core.Point, len(pts))
	for k, p := range pts {
		dx, dy := p.X-c.X, p.Y-c.Y
		out[k] = core.Point{X: c.X + dx*cos - dy*sin, Y: c.Y + dx*sin + dy*cos}
	}
	return out
}

// Orientation is the signed area of the triangle abc: positive when c lies to
// the left of a→b in screen coordinates, negative to the right, zero when
// collinear.
func Orientation(a, b, c core.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// SegmentIntersection intersects a→b with c→d and returns the parameters along
// each segment. Collinear overlaps are not reported.
func SegmentIntersection(a, b, c, d core.Point) (t, u float64, ok bool) {
	rx, ry := b.X-a.X, b.Y-a.Y
	sx, sy := d.X-c.X, d.Y-c.Y
	den := rx*sy - ry*sx
	if math.Abs(den) < 1e-12 {
		return 0, 0, false
	}
	qx, qy := c.X-a.X, c.Y-a.Y
	t = (qx*sy - qy*sx) / den
	u = (qx*ry - qy*rx) / den
	const eps = 1e-9
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return 0, 0, false
	}
	return math.Max(0, math.Min(1, t)), math.Max(0, math.Min(1, u)), true
}

// Lerp returns the point at parameter t along a→b.
func Lerp(a, b core.Point, t float64) core.Point {
	return core.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Point converts to a simplefeatures point. NaN and infinite coordinates are
// rejected.
func Point(p core.Point) (geom.Point, error) {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}, Type: geom.DimXY})
}

// LineString converts a point sequence to a simplefeatures line string. It
// needs no points or at least two distinct ones.
func LineString(pts []core.Point) (geom.LineString, error) {
	coords := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		coords = append(coords, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}
