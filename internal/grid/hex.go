package grid

import (
	"math"

	"github.com/OCAP2/movement/pkg/core"
)

// hex implements row (pointy-top) and column (flat-top) layouts with odd or
// even offset shoving. Size is the distance between opposite vertices.
type hex struct {
	base
	columns bool
	even    bool
	radius  float64
	origin  core.Point
}

type cube struct {
	q, r int
}

var cubeDirections = [...]cube{
	{q: 1, r: 0}, {q: 1, r: -1}, {q: 0, r: -1},
	{q: -1, r: 0}, {q: -1, r: 1}, {q: 0, r: 1},
}

func newHex(cfg Config) *hex {
	h := &hex{
		base:    base{cfg},
		columns: cfg.Type == HexColumnsOdd || cfg.Type == HexColumnsEven,
		even:    cfg.Type == HexRowsEven || cfg.Type == HexColumnsEven,
		radius:  cfg.Size / 2,
	}
	inner := h.radius * math.Sqrt(3)
	switch {
	case !h.columns && !h.even:
		h.origin = core.Point{X: inner / 2, Y: h.radius}
	case !h.columns && h.even:
		h.origin = core.Point{X: inner, Y: h.radius}
	case h.columns && !h.even:
		h.origin = core.Point{X: h.radius, Y: inner / 2}
	default:
		h.origin = core.Point{X: h.radius, Y: inner}
	}
	return h
}

func (g *hex) IsGridless() bool { return false }

func (g *hex) toCube(o core.GridOffset) cube {
	if g.columns {
		parity := o.J & 1
		if g.even {
			return cube{q: o.J, r: o.I - (o.J+parity)/2}
		}
		return cube{q: o.J, r: o.I - (o.J-parity)/2}
	}
	parity := o.I & 1
	if g.even {
		return cube{q: o.J - (o.I+parity)/2, r: o.I}
	}
	return cube{q: o.J - (o.I-parity)/2, r: o.I}
}

func (g *hex) fromCube(c cube) core.GridOffset {
	if g.columns {
		parity := c.q & 1
		if g.even {
			return core.GridOffset{I: c.r + (c.q+parity)/2, J: c.q}
		}
		return core.GridOffset{I: c.r + (c.q-parity)/2, J: c.q}
	}
	parity := c.r & 1
	if g.even {
		return core.GridOffset{I: c.r, J: c.q + (c.r+parity)/2}
	}
	return core.GridOffset{I: c.r, J: c.q + (c.r-parity)/2}
}

func (g *hex) cubeToPixel(q, r float64) core.Point {
	sqrt3 := math.Sqrt(3)
	if g.columns {
		return core.Point{
			X: g.origin.X + g.radius*1.5*q,
			Y: g.origin.Y + g.radius*sqrt3*(r+q/2),
		}
	}
	return core.Point{
		X: g.origin.X + g.radius*sqrt3*(q+r/2),
		Y: g.origin.Y + g.radius*1.5*r,
	}
}

func (g *hex) pixelToCube(p core.Point) (float64, float64) {
	x := p.X - g.origin.X
	y := p.Y - g.origin.Y
	sqrt3 := math.Sqrt(3)
	if g.columns {
		q := (2.0 / 3.0 * x) / g.radius
		r := (-1.0/3.0*x + sqrt3/3.0*y) / g.radius
		return q, r
	}
	q := (sqrt3/3.0*x - 1.0/3.0*y) / g.radius
	r := (2.0 / 3.0 * y) / g.radius
	return q, r
}

func cubeRound(q, r float64) cube {
	s := -q - r
	rq, rr, rs := math.Round(q), math.Round(r), math.Round(s)
	dq, dr, ds := math.Abs(rq-q), math.Abs(rr-r), math.Abs(rs-s)
	switch {
	case dq > dr && dq > ds:
		rq = -rr - rs
	case dr > ds:
		rr = -rq - rs
	}
	return cube{q: int(rq), r: int(rr)}
}

func cubeDistance(a, b cube) int {
	dq := a.q - b.q
	dr := a.r - b.r
	return (absInt(dq) + absInt(dr) + absInt(dq+dr)) / 2
}

func (g *hex) Offset(p core.Point) core.GridOffset {
	return g.fromCube(cubeRound(g.pixelToCube(p)))
}

func (g *hex) Center(o core.GridOffset) core.Point {
	c := g.toCube(o)
	return g.cubeToPixel(float64(c.q), float64(c.r))
}

func (g *hex) Reference(w core.Waypoint) core.GridOffset {
	return g.Offset(g.TokenCenter(w))
}

func (g *hex) TopLeft(o core.GridOffset, width, height float64) core.Point {
	return g.topLeftAround(g.Center(o), width, height)
}

func (g *hex) DirectPath(from, to core.GridOffset) []core.GridOffset {
	a, b := g.toCube(from), g.toCube(to)
	n := cubeDistance(a, b)
	path := make([]core.GridOffset, 0, n+1)
	path = append(path, from)
	// nudge off cell edges so ties round consistently
	const eps = 1e-6
	for k := 1; k <= n; k++ {
		t := float64(k) / float64(n)
		q := float64(a.q) + eps + (float64(b.q-a.q))*t
		r := float64(a.r) + eps + (float64(b.r-a.r))*t
		path = append(path, g.fromCube(cubeRound(q, r-2*eps)))
	}
	return path
}

func (g *hex) Neighbors(o core.GridOffset) []core.GridOffset {
	c := g.toCube(o)
	out := make([]core.GridOffset, 0, len(cubeDirections))
	for _, d := range cubeDirections {
		out = append(out, g.fromCube(cube{q: c.q + d.q, r: c.r + d.r}))
	}
	return out
}

func (g *hex) MeasureStep(from, to core.GridOffset, _ *DiagonalState) StepMeasure {
	n := cubeDistance(g.toCube(from), g.toCube(to))
	return StepMeasure{Distance: float64(n) * g.cfg.Distance, Spaces: n}
}

func (g *hex) Translate(cell, from, to core.GridOffset) core.GridOffset {
	c, a, b := g.toCube(cell), g.toCube(from), g.toCube(to)
	return g.fromCube(cube{q: c.q + b.q - a.q, r: c.r + b.r - a.r})
}

// Footprint approximates hex token shapes: odd sizes cover a full hexagon of
// radius (n-1)/2, even sizes add half of the next ring, on the side chosen
// by the shape variant.
func (g *hex) Footprint(w core.Waypoint) []core.GridOffset {
	center := g.Reference(w)
	n := int(math.Round(math.Max(w.Width, w.Height)))
	if n <= 1 {
		return []core.GridOffset{center}
	}
	c := g.toCube(center)
	core1 := (n - 1) / 2
	variant2 := w.Shape == core.ShapeEllipse2 || w.Shape == core.ShapeTrapezoid2 || w.Shape == core.ShapeRectangle2

	var cells []core.GridOffset
	reach := core1
	if n%2 == 0 {
		reach = n / 2
	}
	for dq := -reach; dq <= reach; dq++ {
		for dr := max(-reach, -dq-reach); dr <= min(reach, -dq+reach); dr++ {
			d := cubeDistance(cube{}, cube{q: dq, r: dr})
			if d > core1 {
				if n%2 != 0 {
					continue
				}
				if variant2 && dq >= 0 || !variant2 && dq <= 0 {
					continue
				}
			}
			cells = append(cells, g.fromCube(cube{q: c.q + dq, r: c.r + dr}))
		}
	}
	return cells
}
