package constrain

import (
	"math"
	"testing"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/walls"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var origin = core.Waypoint{X: 0, Y: 0, Width: 1, Height: 1, Action: action.Walk}

func newConstrainer(ws ...walls.Wall) *Constrainer {
	return New(Dependencies{
		Grid:  grid.Must(grid.Config{Type: grid.Square, Size: 100, Distance: 5}),
		Walls: walls.NewSet(ws...),
	})
}

// wall between column 1 and column 2, rows 0 to 2
var eastWall = walls.Wall{
	ID:        "east",
	A:         core.Point{X: 200, Y: 0},
	B:         core.Point{X: 200, Y: 300},
	Restricts: []walls.EdgeType{walls.EdgeMove},
}

func ptr[T any](v T) *T { return &v }

func TestResolve_DefaultsFromPrevious(t *testing.T) {
	c := newConstrainer()
	in := []core.WaypointInput{
		{X: ptr(0), Y: ptr(0), Explicit: ptr(true), Checkpoint: ptr(true)},
		{X: ptr(100), Action: ptr(action.Fly), Elevation: ptr(10.0)},
		{Y: ptr(100)},
	}

	out, err := c.Resolve(origin, in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, out[0].Explicit)
	assert.Equal(t, 1.0, out[0].Width)
	assert.Equal(t, action.Walk, out[0].Action)

	assert.Equal(t, 100, out[1].X)
	assert.Equal(t, 0, out[1].Y)
	assert.False(t, out[1].Explicit, "explicit is not inherited")
	assert.False(t, out[1].Checkpoint, "checkpoint is not inherited")

	assert.Equal(t, 100, out[2].X)
	assert.Equal(t, 100, out[2].Y)
	assert.Equal(t, action.Fly, out[2].Action)
	assert.Equal(t, 10.0, out[2].Elevation)
}

func TestResolve_EmptyActionUsesRegistryDefault(t *testing.T) {
	c := newConstrainer()
	out, err := c.Resolve(core.Waypoint{Width: 1, Height: 1}, []core.WaypointInput{core.At(0, 0)})
	require.NoError(t, err)
	assert.Equal(t, action.Walk, out[0].Action)
}

func TestResolve_HardValidationFailures(t *testing.T) {
	c := newConstrainer()

	_, err := c.Resolve(origin, []core.WaypointInput{{Width: ptr(0.0)}})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = c.Resolve(origin, []core.WaypointInput{{Height: ptr(-1.0)}})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = c.Resolve(origin, []core.WaypointInput{{Width: ptr(math.NaN())}})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = c.Resolve(origin, []core.WaypointInput{{Shape: ptr(core.TokenShape(42))}})
	assert.ErrorIs(t, err, ErrUnknownShape)

	_, err = c.Resolve(origin, []core.WaypointInput{{Action: ptr("hover")}})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestConstrain_Empty(t *testing.T) {
	out, constrained, err := newConstrainer().Constrain(origin, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.False(t, constrained)
}

func TestConstrain_UnobstructedPathUnchanged(t *testing.T) {
	c := newConstrainer()
	in := []core.WaypointInput{core.At(0, 0), core.At(100, 0), core.At(100, 100)}

	out, constrained, err := c.Constrain(origin, in, Options{})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Len(t, out, 3)
}

func TestConstrain_WallRejectsStep(t *testing.T) {
	c := newConstrainer(eastWall)
	in := []core.WaypointInput{core.At(0, 0), core.At(100, 0), core.At(300, 0), core.At(100, 100)}

	out, constrained, err := c.Constrain(origin, in, Options{})
	require.NoError(t, err)
	assert.True(t, constrained)
	require.Len(t, out, 3)
	assert.Equal(t, 100, out[1].X)
	assert.Equal(t, 100, out[2].Y)
}

func TestConstrain_IgnoreWalls(t *testing.T) {
	c := newConstrainer(eastWall)
	in := []core.WaypointInput{core.At(0, 0), core.At(300, 0)}

	out, constrained, err := c.Constrain(origin, in, Options{IgnoreWalls: true})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Len(t, out, 2)
}

func TestConstrain_ActionBlockingEdgeType(t *testing.T) {
	c := newConstrainer(eastWall)

	burrow := core.At(300, 0)
	burrow.Action = ptr(action.Burrow)
	out, constrained, err := c.Constrain(origin, []core.WaypointInput{core.At(0, 0), burrow}, Options{})
	require.NoError(t, err)
	assert.False(t, constrained, "burrowing ignores walls")
	assert.Len(t, out, 2)

	blink := core.At(300, 0)
	blink.Action = ptr(action.Blink)
	_, constrained, err = c.Constrain(origin, []core.WaypointInput{core.At(0, 0), blink}, Options{})
	require.NoError(t, err)
	assert.False(t, constrained, "teleports are not tested against walls")
}

func TestConstrain_InfiniteCostRejected(t *testing.T) {
	lava := core.GridOffset{I: 0, J: 2}
	c := New(Dependencies{
		Grid: grid.Must(grid.Config{Type: grid.Square, Size: 100, Distance: 5}),
		Cost: func(base float64, _, to core.GridOffset, _ float64, _ core.SegmentData) float64 {
			if to == lava {
				return math.Inf(1)
			}
			return base
		},
	})
	in := []core.WaypointInput{core.At(0, 0), core.At(300, 0), core.At(0, 100)}

	out, constrained, err := c.Constrain(origin, in, Options{})
	require.NoError(t, err)
	assert.True(t, constrained)
	require.Len(t, out, 2)
	assert.Equal(t, 100, out[1].Y)

	out, constrained, err = c.Constrain(origin, in, Options{IgnoreCost: true})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Len(t, out, 3)
}

func TestConstrain_Idempotent(t *testing.T) {
	c := newConstrainer(eastWall)
	in := []core.WaypointInput{core.At(0, 0), core.At(300, 0), core.At(100, 200), core.At(300, 200), core.At(100, 100)}

	first, _, err := c.Constrain(origin, in, Options{})
	require.NoError(t, err)

	again := make([]core.WaypointInput, len(first))
	for i, w := range first {
		again[i] = core.InputFrom(w)
	}
	second, constrained, err := c.Constrain(origin, again, Options{})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Equal(t, first, second)
}

func TestConstrain_HistoryIsReadOnlyContext(t *testing.T) {
	recorded := []core.MeasuredWaypoint{{Distance: 25}, {Distance: 10}}
	var lengths []int
	c := New(Dependencies{
		Grid: grid.Must(grid.Config{Type: grid.Square, Size: 100, Distance: 5}),
		Cost: func(base float64, _, _ core.GridOffset, _ float64, seg core.SegmentData) float64 {
			lengths = append(lengths, len(seg.History))
			var spent float64
			for _, h := range seg.History {
				spent += h.Distance
			}
			if spent >= 40 {
				return math.Inf(1)
			}
			return base
		},
	})
	in := []core.WaypointInput{core.At(0, 0), core.At(100, 0), core.At(200, 0)}

	out, constrained, err := c.Constrain(origin, in, Options{Preview: true, History: RecordedHistory(recorded)})
	require.NoError(t, err)
	assert.True(t, constrained, "second step exceeds the stamina budget")
	assert.Len(t, out, 2)
	assert.Equal(t, []int{2, 3}, lengths)
	assert.Len(t, recorded, 2)

	lengths = nil
	_, constrained, err = c.Constrain(origin, in, Options{History: HistoryOverride(nil)})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Equal(t, []int{0, 1}, lengths)
}

func TestConstrain_IgnoresRenderedPosition(t *testing.T) {
	c := newConstrainer(eastWall)
	tok := core.Token{ID: "t1", Position: origin, Rendered: core.Point{X: 250, Y: 0}}
	in := []core.WaypointInput{core.At(0, 0), core.At(100, 0)}

	out, constrained, err := c.Constrain(tok.Position, in, Options{})
	require.NoError(t, err)
	assert.False(t, constrained)
	assert.Len(t, out, 2)
}
