package region

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/geo"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/measure"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() grid.Grid {
	return grid.Must(grid.Config{Type: grid.Square, Size: 100, Distance: 1})
}

func wp(x, y int) core.Waypoint {
	return core.Waypoint{X: x, Y: y, Width: 1, Height: 1, Action: action.Walk}
}

func f(v float64) *float64 { return &v }

func rect(t *testing.T, id string, x, y, w, h float64, behaviors ...Behavior) *Region {
	t.Helper()
	r, err := New(Config{
		ID:        id,
		Shapes:    []Shape{{Type: ShapeRectangle, X: x, Y: y, Width: w, Height: h}},
		Behaviors: behaviors,
	})
	require.NoError(t, err)
	return r
}

// checkInvariants asserts the containment rules of every segment.
func checkInvariants(t *testing.T, g grid.Grid, r *Region, segs []core.RegionMovementSegment) {
	t.Helper()
	for i, s := range segs {
		from := TestInsideRegion(g, r, s.From)
		to := TestInsideRegion(g, r, s.To)
		switch s.Type {
		case core.SegmentMove:
			assert.True(t, from && to, "segment %d MOVE must be inside at both ends", i)
		case core.SegmentEnter:
			assert.True(t, !from && to, "segment %d ENTER must start outside and end inside", i)
		case core.SegmentExit:
			assert.True(t, from && !to, "segment %d EXIT must start inside and end outside", i)
		}
	}
}

func TestNew_RequiresSolidShape(t *testing.T) {
	_, err := New(Config{ID: "r", Shapes: []Shape{{Type: ShapeRectangle, Width: 10, Height: 10, Hole: true}}})
	assert.ErrorIs(t, err, ErrNoShapes)

	_, err = New(Config{ID: "r", Shapes: []Shape{{Type: ShapePolygon, Points: []core.Point{{X: 0, Y: 0}}}}})
	assert.ErrorIs(t, err, geo.ErrDegeneratePolygon)

	bowTie := []core.Point{{X: 0, Y: 0}, {X: 100, Y: 100}, {X: 100, Y: 0}, {X: 0, Y: 100}}
	_, err = New(Config{ID: "r", Shapes: []Shape{{Type: ShapePolygon, Points: bowTie}}})
	assert.ErrorIs(t, err, geo.ErrDegeneratePolygon)
}

func TestTestPoint_HolesAndElevation(t *testing.T) {
	r, err := New(Config{
		ID: "pit",
		Shapes: []Shape{
			{Type: ShapeRectangle, X: 0, Y: 0, Width: 300, Height: 300},
			{Type: ShapeRectangle, X: 100, Y: 100, Width: 100, Height: 100, Hole: true},
		},
		Elevation: Elevation{Bottom: f(0), Top: f(10)},
	})
	require.NoError(t, err)

	assert.True(t, r.TestPoint(core.ElevatedPoint{X: 50, Y: 50}))
	assert.False(t, r.TestPoint(core.ElevatedPoint{X: 150, Y: 150}), "inside the hole")
	assert.True(t, r.TestPoint(core.ElevatedPoint{X: 100, Y: 150}), "hole edge belongs to the region")
	assert.False(t, r.TestPoint(core.ElevatedPoint{X: 50, Y: 50, Elevation: 11}))
	assert.False(t, r.TestPoint(core.ElevatedPoint{X: 50, Y: 50, Elevation: -1}))
	assert.False(t, r.TestPoint(core.ElevatedPoint{X: 500, Y: 50}))
}

func TestTestPoint_Ellipse(t *testing.T) {
	r, err := New(Config{ID: "pond", Shapes: []Shape{{Type: ShapeEllipse, X: 200, Y: 200, RadiusX: 100, RadiusY: 100}}})
	require.NoError(t, err)

	assert.True(t, r.TestPoint(core.ElevatedPoint{X: 200, Y: 200}))
	assert.False(t, r.TestPoint(core.ElevatedPoint{X: 110, Y: 110}))
}

func TestTestInsideRegion_UsesTokenCentre(t *testing.T) {
	g := testGrid()
	r := rect(t, "r", 200, 0, 200, 100)

	assert.False(t, TestInsideRegion(g, r, wp(140, 0)))
	assert.True(t, TestInsideRegion(g, r, wp(160, 0)))

	big := wp(100, 0)
	big.Width, big.Height = 2, 1
	assert.True(t, TestInsideRegion(g, r, big))
}

func TestSegmentize_ThreePlusThree(t *testing.T) {
	g := testGrid()
	r := rect(t, "all", -1000, -1000, 5000, 5000)
	s := NewSegmenter(g, nil)

	segs := s.Segmentize(r, []core.Waypoint{wp(0, 0), wp(300, 0), wp(300, 300)})
	require.Len(t, segs, 2)
	for _, seg := range segs {
		assert.Equal(t, core.SegmentMove, seg.Type)
	}
	assert.Equal(t, segs[0].To, segs[1].From)
	assert.Equal(t, 300, segs[1].To.Y)
}

func TestSegmentize_EnterMoveExit(t *testing.T) {
	g := testGrid()
	r := rect(t, "band", 200, 0, 200, 100)
	s := NewSegmenter(g, nil)

	segs := s.Segmentize(r, []core.Waypoint{wp(0, 0), wp(500, 0)})
	require.Len(t, segs, 3)
	assert.Equal(t, core.SegmentEnter, segs[0].Type)
	assert.Equal(t, core.SegmentMove, segs[1].Type)
	assert.Equal(t, core.SegmentExit, segs[2].Type)

	assert.Equal(t, 0, segs[0].From.X)
	assert.Equal(t, 151, segs[0].To.X)
	assert.Equal(t, 349, segs[1].To.X)
	assert.Equal(t, 351, segs[2].To.X)
	assert.True(t, segs[0].To.Intermediate)
	checkInvariants(t, g, r, segs)
}

func TestSegmentize_ReentryIsConnected(t *testing.T) {
	g := testGrid()
	r := rect(t, "band", 200, 0, 200, 100)
	s := NewSegmenter(g, nil)

	path := []core.Waypoint{wp(0, 0), wp(300, 0), wp(300, 300), wp(300, 0)}
	segs := s.Segmentize(r, path)
	checkInvariants(t, g, r, segs)

	var types []core.RegionSegmentType
	for _, seg := range segs {
		types = append(types, seg.Type)
	}
	assert.Equal(t, []core.RegionSegmentType{
		core.SegmentEnter, core.SegmentMove, core.SegmentMove, core.SegmentExit, core.SegmentEnter, core.SegmentMove,
	}, types)

	exit, reenter := segs[3], segs[4]
	assert.Equal(t, exit.To, reenter.From)
	assert.Equal(t, 300, segs[5].To.X)
	assert.Equal(t, 0, segs[5].To.Y)
}

func TestSegmentize_Teleport(t *testing.T) {
	g := testGrid()
	r := rect(t, "band", 200, 0, 200, 100)
	s := NewSegmenter(g, action.Default())

	dest := wp(250, 0)
	dest.Action = action.Blink
	segs := s.Segmentize(r, []core.Waypoint{wp(0, 0), dest})

	require.Len(t, segs, 1)
	assert.Equal(t, core.SegmentEnter, segs[0].Type)
	assert.True(t, segs[0].Teleport)
	assert.Equal(t, 0, segs[0].From.X)
	assert.Equal(t, 250, segs[0].To.X)
}

func TestSegmentize_TeleportBackInIsConnected(t *testing.T) {
	g := testGrid()
	r := rect(t, "band", 200, 0, 200, 100)
	s := NewSegmenter(g, action.Default())

	back := wp(250, 0)
	back.Action = action.Blink
	segs := s.Segmentize(r, []core.Waypoint{wp(250, 0), wp(800, 0), back})
	checkInvariants(t, g, r, segs)

	require.Len(t, segs, 3)
	assert.Equal(t, core.SegmentExit, segs[1].Type)
	assert.Equal(t, core.SegmentEnter, segs[2].Type)
	assert.True(t, segs[2].Teleport)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].To, segs[i].From, "segments %d and %d", i-1, i)
	}
	assert.Equal(t, 250, segs[2].To.X)
}

func TestSegmentize_ElevationBound(t *testing.T) {
	g := testGrid()
	r, err := New(Config{
		ID:        "low",
		Shapes:    []Shape{{Type: ShapeRectangle, X: -1000, Y: -1000, Width: 5000, Height: 5000}},
		Elevation: Elevation{Top: f(10)},
	})
	require.NoError(t, err)
	s := NewSegmenter(g, nil)

	high := wp(400, 0)
	high.Elevation = 20
	segs := s.Segmentize(r, []core.Waypoint{wp(0, 0), high})

	require.Len(t, segs, 2)
	assert.Equal(t, core.SegmentMove, segs[0].Type)
	assert.Equal(t, core.SegmentExit, segs[1].Type)
	checkInvariants(t, g, r, segs)
}

func TestSegmentize_OutsideOnly(t *testing.T) {
	g := testGrid()
	r := rect(t, "far", 5000, 5000, 100, 100)

	assert.Empty(t, NewSegmenter(g, nil).Segmentize(r, []core.Waypoint{wp(0, 0), wp(300, 0)}))
	assert.Nil(t, NewSegmenter(g, nil).Segmentize(r, nil))
}

func TestInjectTerrain_LazyAndRestartable(t *testing.T) {
	g := testGrid()
	mud := rect(t, "mud", 200, 0, 200, 100, DifficultTerrain{Factor: 2})
	plain := rect(t, "plain", -1000, -1000, 5000, 5000)
	s := NewSegmenter(g, nil)
	path := []core.Waypoint{wp(0, 0), wp(500, 0)}

	seq := s.InjectTerrain([]*Region{mud, plain}, path)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	var xs []int
	for _, w := range first {
		xs = append(xs, w.X)
	}
	assert.Equal(t, []int{0, 149, 151, 349, 351, 500}, xs)
	assert.Equal(t, path, core.StripIntermediate(first))

	for w := range seq {
		if w.X > 0 {
			break
		}
	}

	assert.Equal(t, path, slices.Collect(s.InjectTerrain([]*Region{plain}, path)))
}

func TestTerrainCost_Measured(t *testing.T) {
	g := testGrid()
	mud := rect(t, "mud", 200, 0, 200, 100, DifficultTerrain{Factor: 2})
	regions := []*Region{mud}
	s := NewSegmenter(g, nil)

	path := slices.Collect(s.InjectTerrain(regions, []core.Waypoint{wp(0, 0), wp(500, 0)}))
	res, err := measure.Measure(g, path, measure.Options{
		Cost:    TerrainCost(nil),
		Terrain: s.TerrainFor(regions),
	})
	require.NoError(t, err)

	stripped := res.StripIntermediate()
	require.Len(t, stripped.Waypoints, 2)
	assert.Equal(t, 5.0, stripped.Distance)
	assert.Equal(t, 8.0, stripped.Cost)
}

func TestDifficultTerrain_IgnoredActions(t *testing.T) {
	d := DifficultTerrain{Factor: 3, IgnoreActions: []string{action.Fly}}

	assert.Equal(t, 3.0, d.Multiplier(action.Walk, 0))
	assert.Equal(t, 1.0, d.Multiplier(action.Fly, 0))
	assert.Equal(t, 2.0, DifficultTerrain{}.Multiplier(action.Walk, 0))
}

func TestEvents(t *testing.T) {
	enter := core.RegionMovementSegment{Type: core.SegmentEnter}
	move := core.RegionMovementSegment{Type: core.SegmentMove}
	exit := core.RegionMovementSegment{Type: core.SegmentExit}

	assert.Equal(t,
		[]core.RegionEventName{core.EventEnter, core.EventMoveIn, core.EventMoveWithin},
		Events([]core.RegionMovementSegment{enter, move}, false, true))
	assert.Equal(t,
		[]core.RegionEventName{core.EventMoveOut, core.EventMoveWithin, core.EventExit},
		Events([]core.RegionMovementSegment{move, exit}, true, false))
	assert.Equal(t,
		[]core.RegionEventName{core.EventMoveIn, core.EventMoveOut},
		Events([]core.RegionMovementSegment{enter, exit}, false, false))
	assert.Empty(t, Events(nil, true, true))
}

func TestBlockEntry(t *testing.T) {
	var b BlockEntry
	assert.False(t, b.AllowMove(context.Background(), PreMove{Segments: []core.RegionMovementSegment{{Type: core.SegmentEnter}}}))
	assert.True(t, b.AllowMove(context.Background(), PreMove{Segments: []core.RegionMovementSegment{{Type: core.SegmentExit}}}))
}

type fakeControl struct {
	keys    []string
	paused  int
	resumed chan struct{}
}

func (c *fakeControl) MovementID() string { return "m1" }

func (c *fakeControl) Pause() func() {
	c.paused++
	return func() { close(c.resumed) }
}

func (c *fakeControl) PauseWithKey(key string) { c.keys = append(c.keys, key) }

func TestPauseOnEnter(t *testing.T) {
	ctl := &fakeControl{resumed: make(chan struct{})}
	ev := core.RegionEvent{RegionID: "gate", Name: core.EventEnter}

	PauseOnEnter{}.HandleEvent(context.Background(), ev, ctl)
	assert.Equal(t, []string{"region:gate"}, ctl.keys)

	PauseOnEnter{Key: "trap"}.HandleEvent(context.Background(), core.RegionEvent{Name: core.EventExit}, ctl)
	assert.Len(t, ctl.keys, 1, "only ENTER pauses")

	PauseOnEnter{Duration: time.Millisecond}.HandleEvent(context.Background(), ev, ctl)
	assert.Equal(t, 1, ctl.paused)
	select {
	case <-ctl.resumed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed pause was never released")
	}
}

func TestHandlerFunc_FiltersEvents(t *testing.T) {
	var got []core.RegionEventName
	h := HandlerFunc{
		ID:     "log",
		Events: []core.RegionEventName{core.EventExit},
		Fn: func(_ context.Context, ev core.RegionEvent, _ MovementControl) {
			got = append(got, ev.Name)
		},
	}
	h.HandleEvent(context.Background(), core.RegionEvent{Name: core.EventEnter}, nil)
	h.HandleEvent(context.Background(), core.RegionEvent{Name: core.EventExit}, nil)
	assert.Equal(t, []core.RegionEventName{core.EventExit}, got)
}

func TestBuildBehavior(t *testing.T) {
	b, err := BuildBehavior(BehaviorSpec{Type: "difficultTerrain", Factor: 3})
	require.NoError(t, err)
	assert.Equal(t, EffectCost, b.Effects())

	b, err = BuildBehavior(BehaviorSpec{Type: "blockEntry"})
	require.NoError(t, err)
	assert.Equal(t, "blockEntry", b.Name())

	_, err = BuildBehavior(BehaviorSpec{Type: "teleporter"})
	assert.Error(t, err)
}
