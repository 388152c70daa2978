package walls

import (
	"testing"

	"github.com/OCAP2/movement/pkg/core"
	"github.com/stretchr/testify/assert"
)

func vertical(id string, x float64) Wall {
	return Wall{
		ID:        id,
		A:         core.Point{X: x, Y: 0},
		B:         core.Point{X: x, Y: 300},
		Restricts: []EdgeType{EdgeMove, EdgeSight},
	}
}

func TestWall_Blocks(t *testing.T) {
	w := vertical("w1", 100)
	a, b := core.Point{X: 50, Y: 50}, core.Point{X: 150, Y: 50}

	assert.True(t, w.Blocks(a, b, EdgeMove))
	assert.True(t, w.Blocks(b, a, EdgeMove))
	assert.False(t, w.Blocks(a, b, EdgeSound), "wall does not restrict sound")
	assert.False(t, w.Blocks(a, b, EdgeNone))
	assert.False(t, w.Blocks(a, core.Point{X: 100, Y: 50}, EdgeMove), "ending on the wall is not crossing it")
	assert.False(t, w.Blocks(core.Point{X: 50, Y: 400}, core.Point{X: 150, Y: 400}, EdgeMove))
}

func TestWall_OpenDoorDoesNotBlock(t *testing.T) {
	w := vertical("door", 100)
	w.Door = DoorOpen

	assert.False(t, w.Blocks(core.Point{X: 50, Y: 50}, core.Point{X: 150, Y: 50}, EdgeMove))

	w.Door = DoorLocked
	assert.True(t, w.Blocks(core.Point{X: 50, Y: 50}, core.Point{X: 150, Y: 50}, EdgeMove))
}

func TestWall_OneWay(t *testing.T) {
	w := vertical("oneway", 100)
	w.Direction = DirectionLeft
	west, east := core.Point{X: 50, Y: 50}, core.Point{X: 150, Y: 50}

	// with A above B, the west side has a positive orientation
	assert.True(t, w.Blocks(west, east, EdgeMove))
	assert.False(t, w.Blocks(east, west, EdgeMove))
}

func TestSet_FirstCollisionIsNearest(t *testing.T) {
	s := NewSet(vertical("far", 250), vertical("near", 150))

	hit, ok := s.FirstCollision(core.Point{X: 50, Y: 50}, core.Point{X: 350, Y: 50}, EdgeMove)
	assert.True(t, ok)
	assert.Equal(t, "near", hit.ID)
	assert.False(t, s.Collides(core.Point{X: 50, Y: 50}, core.Point{X: 120, Y: 50}, EdgeMove))
}

func TestSet_SetDoor(t *testing.T) {
	s := NewSet(vertical("door", 100))
	a, b := core.Point{X: 50, Y: 50}, core.Point{X: 150, Y: 50}

	assert.True(t, s.Collides(a, b, EdgeMove))
	assert.True(t, s.SetDoor("door", DoorOpen))
	assert.False(t, s.Collides(a, b, EdgeMove))
	assert.False(t, s.SetDoor("missing", DoorOpen))
}

func TestSet_NilIsEmpty(t *testing.T) {
	var s *Set
	assert.False(t, s.Collides(core.Point{}, core.Point{X: 10}, EdgeMove))
}

func TestParseEdgeType(t *testing.T) {
	e, err := ParseEdgeType("Move")
	assert.NoError(t, err)
	assert.Equal(t, EdgeMove, e)

	_, err = ParseEdgeType("gravity")
	assert.Error(t, err)
}
