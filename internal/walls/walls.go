// Package walls holds the blocking edges of a scene and tests straight moves
// against them.
package walls

import (
	"fmt"
	"strings"
	"sync"

	"github.com/OCAP2/movement/internal/geo"
	"github.com/OCAP2/movement/pkg/core"
)

// EdgeType selects which restriction of a wall applies to a move.
type EdgeType int

const (
	EdgeNone EdgeType = iota
	EdgeMove
	EdgeSight
	EdgeLight
	EdgeSound
)

var edgeNames = map[string]EdgeType{
	"":      EdgeNone,
	"none":  EdgeNone,
	"move":  EdgeMove,
	"sight": EdgeSight,
	"light": EdgeLight,
	"sound": EdgeSound,
}

func ParseEdgeType(name string) (EdgeType, error) {
	t, ok := edgeNames[strings.ToLower(name)]
	if !ok {
		return EdgeNone, fmt.Errorf("unknown edge type %q", name)
	}
	return t, nil
}

func (t EdgeType) String() string {
	switch t {
	case EdgeMove:
		return "move"
	case EdgeSight:
		return "sight"
	case EdgeLight:
		return "light"
	case EdgeSound:
		return "sound"
	}
	return "none"
}

// Door is the door state of a wall. Open doors never block.
type Door int

const (
	DoorNone Door = iota
	DoorClosed
	DoorOpen
	DoorLocked
)

// ParseDoor parses a door state. The empty string means no door.
func ParseDoor(name string) (Door, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return DoorNone, nil
	case "closed":
		return DoorClosed, nil
	case "open":
		return DoorOpen, nil
	case "locked":
		return DoorLocked, nil
	}
	return 0, fmt.Errorf("unknown door state %q", name)
}

// Direction restricts which side a wall blocks from.
type Direction int

const (
	DirectionBoth Direction = iota
	// DirectionLeft blocks moves starting left of A→B.
	DirectionLeft
	// DirectionRight blocks moves starting right of A→B.
	DirectionRight
)

func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(name) {
	case "", "both":
		return DirectionBoth, nil
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	}
	return 0, fmt.Errorf("unknown wall direction %q", name)
}

// Wall is a segment from A to B.
type Wall struct {
	ID        string
	A, B      core.Point
	Restricts []EdgeType
	Door      Door
	Direction Direction
}

func (w Wall) restricts(t EdgeType) bool {
	for _, r := range w.Restricts {
		if r == t {
			return true
		}
	}
	return false
}

// Blocks reports whether moving from a to b crosses the wall for the given
// edge type. Touching the wall line without passing through it does not
// count; passing exactly through an endpoint does.
func (w Wall) Blocks(a, b core.Point, t EdgeType) bool {
	if t == EdgeNone || w.Door == DoorOpen || !w.restricts(t) {
		return false
	}
	o1 := geo.Orientation(w.A, w.B, a)
	o2 := geo.Orientation(w.A, w.B, b)
	if o1*o2 >= 0 {
		return false
	}
	o3 := geo.Orientation(a, b, w.A)
	o4 := geo.Orientation(a, b, w.B)
	if o3*o4 > 0 {
		return false
	}
	switch w.Direction {
	case DirectionLeft:
		return o1 > 0
	case DirectionRight:
		return o1 < 0
	}
	return true
}

func (w Wall) bounds() geo.Bounds {
	return geo.BoundsOf([]core.Point{w.A, w.B})
}

// Set is a concurrency-safe collection of walls.
type Set struct {
	mu    sync.RWMutex
	walls []Wall
	boxes []geo.Bounds
}

func NewSet(walls ...Wall) *Set {
	s := &Set{}
	for _, w := range walls {
		s.Add(w)
	}
	return s
}

func (s *Set) Add(w Wall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walls = append(s.walls, w)
	s.boxes = append(s.boxes, w.bounds())
}

// SetDoor changes the door state of the wall with the given id.
func (s *Set) SetDoor(id string, d Door) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.walls {
		if s.walls[i].ID == id {
			s.walls[i].Door = d
			return true
		}
	}
	return false
}

func (s *Set) All() []Wall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Wall(nil), s.walls...)
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.walls)
}

// Collides reports whether any wall blocks the straight move from a to b.
func (s *Set) Collides(a, b core.Point, t EdgeType) bool {
	_, ok := s.FirstCollision(a, b, t)
	return ok
}

// FirstCollision returns the blocking wall nearest to a.
func (s *Set) FirstCollision(a, b core.Point, t EdgeType) (Wall, bool) {
	if s == nil || t == EdgeNone || a == b {
		return Wall{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	move := geo.BoundsOf([]core.Point{a, b})
	var (
		hit   Wall
		best  = 2.0
		found bool
	)
	for i, w := range s.walls {
		if !s.boxes[i].Overlaps(move) || !w.Blocks(a, b, t) {
			continue
		}
		at, _, ok := geo.SegmentIntersection(a, b, w.A, w.B)
		if !ok {
			at = 1
		}
		if at < best {
			hit, best, found = w, at, true
		}
	}
	return hit, found
}
