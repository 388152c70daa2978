package grid

import (
	"math"

	"github.com/OCAP2/movement/pkg/core"
)

type square struct {
	base
}

var (
	squareOrthogonal = [...]core.GridOffset{{I: -1, J: 0}, {I: 0, J: 1}, {I: 1, J: 0}, {I: 0, J: -1}}
	squareDiagonal   = [...]core.GridOffset{{I: -1, J: 1}, {I: 1, J: 1}, {I: 1, J: -1}, {I: -1, J: -1}}
)

func (g *square) IsGridless() bool { return false }

func (g *square) Offset(p core.Point) core.GridOffset {
	return core.GridOffset{
		I: int(math.Floor(p.Y / g.cfg.Size)),
		J: int(math.Floor(p.X / g.cfg.Size)),
	}
}

func (g *square) Center(o core.GridOffset) core.Point {
	return core.Point{
		X: (float64(o.J) + 0.5) * g.cfg.Size,
		Y: (float64(o.I) + 0.5) * g.cfg.Size,
	}
}

// Reference is the top-left occupied cell, or the cell under the centre for
// tokens smaller than one cell.
func (g *square) Reference(w core.Waypoint) core.GridOffset {
	if w.Width < 1 || w.Height < 1 {
		return g.Offset(g.TokenCenter(w))
	}
	return g.Offset(core.Point{X: float64(w.X) + g.cfg.Size/2, Y: float64(w.Y) + g.cfg.Size/2})
}

func (g *square) TopLeft(o core.GridOffset, width, height float64) core.Point {
	if width < 1 || height < 1 {
		return g.topLeftAround(g.Center(o), width, height)
	}
	return core.Point{X: float64(o.J) * g.cfg.Size, Y: float64(o.I) * g.cfg.Size}
}

func (g *square) DirectPath(from, to core.GridOffset) []core.GridOffset {
	di := to.I - from.I
	dj := to.J - from.J
	if g.cfg.Diagonals == Rectilinear || g.cfg.Diagonals == Illegal {
		return rectilinearPath(from, di, dj)
	}
	n := max(absInt(di), absInt(dj))
	path := make([]core.GridOffset, 0, n+1)
	path = append(path, from)
	for k := 1; k <= n; k++ {
		t := float64(k) / float64(n)
		path = append(path, core.GridOffset{
			I: from.I + int(math.Round(float64(di)*t)),
			J: from.J + int(math.Round(float64(dj)*t)),
		})
	}
	return path
}

// rectilinearPath walks the longer axis first so no step is diagonal.
func rectilinearPath(from core.GridOffset, di, dj int) []core.GridOffset {
	path := make([]core.GridOffset, 0, absInt(di)+absInt(dj)+1)
	cur := from
	path = append(path, cur)
	stepI, stepJ := sign(di), sign(dj)
	remI, remJ := absInt(di), absInt(dj)
	for remI > 0 || remJ > 0 {
		// interleave proportionally to stay close to the straight line
		if remJ > 0 && (remI == 0 || remJ*absInt(di) >= remI*absInt(dj)) {
			cur.J += stepJ
			remJ--
		} else {
			cur.I += stepI
			remI--
		}
		path = append(path, cur)
	}
	return path
}

func (g *square) Neighbors(o core.GridOffset) []core.GridOffset {
	out := make([]core.GridOffset, 0, 8)
	for _, d := range squareOrthogonal {
		out = append(out, o.Add(d))
	}
	if g.cfg.Diagonals == Rectilinear || g.cfg.Diagonals == Illegal {
		return out
	}
	for _, d := range squareDiagonal {
		out = append(out, o.Add(d))
	}
	return out
}

func (g *square) MeasureStep(from, to core.GridOffset, st *DiagonalState) StepMeasure {
	di := absInt(to.I - from.I)
	dj := absInt(to.J - from.J)
	diag := min(di, dj)
	straight := max(di, dj) - diag

	var cells float64
	spaces := straight + diag
	diagonals := diag
	switch g.cfg.Diagonals {
	case Equidistant:
		cells = float64(straight + diag)
	case Exact:
		cells = float64(straight) + float64(diag)*math.Sqrt2
	case Approximate:
		cells = float64(straight) + float64(diag)*1.5
	case Alternating1, Alternating2:
		cells = float64(straight)
		for k := 0; k < diag; k++ {
			if st != nil {
				st.count++
			}
			n := k + 1
			if st != nil {
				n = st.count
			}
			even := n%2 == 0
			if even == (g.cfg.Diagonals == Alternating1) {
				cells += 2
			} else {
				cells++
			}
		}
	case Rectilinear, Illegal:
		cells = float64(di + dj)
		spaces = di + dj
		diagonals = 0
	}
	return StepMeasure{
		Distance:  cells * g.cfg.Distance,
		Spaces:    spaces,
		Diagonals: diagonals,
	}
}

func (g *square) Translate(cell, from, to core.GridOffset) core.GridOffset {
	return cell.Add(to.Sub(from))
}

func (g *square) Footprint(w core.Waypoint) []core.GridOffset {
	if w.Width < 1 || w.Height < 1 {
		return []core.GridOffset{g.Offset(g.TokenCenter(w))}
	}
	rows := int(math.Ceil(w.Height - 1e-9))
	cols := int(math.Ceil(w.Width - 1e-9))
	top := g.Reference(w)
	cells := make([]core.GridOffset, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cells = append(cells, core.GridOffset{I: top.I + i, J: top.J + j})
		}
	}
	return cells
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
