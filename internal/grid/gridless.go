package grid

import (
	"math"

	"github.com/OCAP2/movement/pkg/core"
)

// gridless measures in continuous space. Offsets are still derived from
// Size so cost functions receive stable cell coordinates.
type gridless struct {
	base
}

func (g *gridless) IsGridless() bool { return true }

func (g *gridless) Offset(p core.Point) core.GridOffset {
	return core.GridOffset{
		I: int(math.Floor(p.Y / g.cfg.Size)),
		J: int(math.Floor(p.X / g.cfg.Size)),
	}
}

func (g *gridless) Center(o core.GridOffset) core.Point {
	return core.Point{
		X: (float64(o.J) + 0.5) * g.cfg.Size,
		Y: (float64(o.I) + 0.5) * g.cfg.Size,
	}
}

func (g *gridless) Reference(w core.Waypoint) core.GridOffset {
	return g.Offset(g.TokenCenter(w))
}

func (g *gridless) TopLeft(o core.GridOffset, width, height float64) core.Point {
	return g.topLeftAround(g.Center(o), width, height)
}

func (g *gridless) DirectPath(from, to core.GridOffset) []core.GridOffset {
	if from == to {
		return []core.GridOffset{from}
	}
	return []core.GridOffset{from, to}
}

func (g *gridless) Neighbors(core.GridOffset) []core.GridOffset {
	return nil
}

func (g *gridless) MeasureStep(from, to core.GridOffset, _ *DiagonalState) StepMeasure {
	return g.MeasurePoints(g.Center(from), g.Center(to))
}

func (g *gridless) Translate(cell, from, to core.GridOffset) core.GridOffset {
	return cell.Add(to.Sub(from))
}

func (g *gridless) Footprint(w core.Waypoint) []core.GridOffset {
	return []core.GridOffset{g.Reference(w)}
}
