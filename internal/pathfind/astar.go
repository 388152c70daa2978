package pathfind

import (
	"container/heap"
	"context"
	"math"

	"github.com/OCAP2/movement/internal/constrain"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/pkg/core"
)

type pathNode struct {
	cell   core.GridOffset
	g      float64
	f      float64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// searcher runs A* over the reference cells of a token.
type searcher struct {
	grid     grid.Grid
	c        *constrain.Constrainer
	opts     constrain.Options
	maxNodes int
	expanded int
}

// at places the footprint of w with its reference cell on cell. Search
// waypoints are part of the route, so they are not intermediate.
func (s *searcher) at(w core.Waypoint, cell core.GridOffset) core.Waypoint {
	p := s.grid.TopLeft(cell, w.Width, w.Height)
	out := w
	out.X = int(math.Round(p.X))
	out.Y = int(math.Round(p.Y))
	out.Snapped = true
	out.Explicit = false
	out.Checkpoint = false
	out.Intermediate = false
	return out
}

func (s *searcher) heuristic(a, b core.GridOffset) float64 {
	return s.grid.MeasureStep(a, b, nil).Distance
}

// step prices the move between two adjacent cells for a token shaped like
// goal. ok is false when the move is blocked or impassable.
func (s *searcher) step(goal core.Waypoint, a, b core.GridOffset) (float64, bool) {
	from, to := s.at(goal, a), s.at(goal, b)
	mw, ok := s.c.Step(from, to, s.opts)
	if !ok {
		return 0, false
	}
	if s.opts.IgnoreCost {
		return s.grid.MeasureStep(a, b, nil).Distance, true
	}
	return mw.Cost, true
}

// canCutCorner rejects diagonal square steps whose two orthogonal detours are
// both blocked.
func (s *searcher) canCutCorner(goal core.Waypoint, a, b core.GridOffset) bool {
	if s.grid.Config().Type != grid.Square || a.I == b.I || a.J == b.J {
		return true
	}
	_, okH := s.step(goal, a, core.GridOffset{I: a.I, J: b.J})
	if okH {
		return true
	}
	_, okV := s.step(goal, a, core.GridOffset{I: b.I, J: a.J})
	return okV
}

// search returns the cells from start to end, both inclusive.
func (s *searcher) search(ctx context.Context, goal core.Waypoint, start, end core.GridOffset) ([]core.GridOffset, bool) {
	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{cell: start, f: s.heuristic(start, end)})
	gScore := map[core.GridOffset]float64{start: 0}
	closed := make(map[core.GridOffset]struct{})

	for open.Len() > 0 {
		if s.expanded%64 == 0 && ctx.Err() != nil {
			return nil, false
		}
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if current.cell == end {
			return reconstructPath(current), true
		}
		s.expanded++
		if s.maxNodes > 0 && s.expanded > s.maxNodes {
			return nil, false
		}

		for _, next := range s.grid.Neighbors(current.cell) {
			if _, seen := closed[next]; seen {
				continue
			}
			cost, ok := s.step(goal, current.cell, next)
			if !ok || !s.canCutCorner(goal, current.cell, next) {
				continue
			}
			tentativeG := current.g + cost
			if prev, ok := gScore[next]; ok && tentativeG >= prev {
				continue
			}
			gScore[next] = tentativeG
			heap.Push(open, &pathNode{
				cell:   next,
				g:      tentativeG,
				f:      tentativeG + s.heuristic(next, end),
				parent: current,
			})
		}
	}
	return nil, false
}

func reconstructPath(end *pathNode) []core.GridOffset {
	path := make([]core.GridOffset, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.cell)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// turningPoints drops cells that continue in the same direction as the
// previous step. The first and last cells are kept.
func turningPoints(g grid.Grid, cells []core.GridOffset) []core.GridOffset {
	if len(cells) <= 2 {
		return cells
	}
	out := []core.GridOffset{cells[0]}
	for i := 1; i < len(cells)-1; i++ {
		if !collinear(g, cells[i-1], cells[i], cells[i+1]) {
			out = append(out, cells[i])
		}
	}
	return append(out, cells[len(cells)-1])
}

func collinear(g grid.Grid, a, b, c core.GridOffset) bool {
	pa, pb, pc := g.Center(a), g.Center(b), g.Center(c)
	cross := (pb.X-pa.X)*(pc.Y-pb.Y) - (pb.Y-pa.Y)*(pc.X-pb.X)
	return math.Abs(cross) < 1e-6
}
