package region

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/OCAP2/movement/pkg/core"
)

// Effect is the set of things a behavior may do to movement.
type Effect uint8

const (
	// EffectCost behaviors implement CostModifier.
	EffectCost Effect = 1 << iota
	// EffectPreMove behaviors implement PreMoveHandler.
	EffectPreMove
	// EffectEvents behaviors implement EventHandler.
	EffectEvents
)

// Behavior is attached to a region.
type Behavior interface {
	Name() string
	Effects() Effect
}

// CostModifier scales the cost of movement inside a region.
type CostModifier interface {
	Behavior
	Multiplier(action string, elevation float64) float64
}

// PreMove is the context of a movement about to cross a region.
type PreMove struct {
	Region   *Region
	TokenID  string
	UserID   string
	Path     []core.Waypoint
	Segments []core.RegionMovementSegment
}

// PreMoveHandler may veto a movement before it is committed.
type PreMoveHandler interface {
	Behavior
	AllowMove(ctx context.Context, pm PreMove) bool
}

// MovementControl lets event handlers hold the movement that raised the event.
type MovementControl interface {
	MovementID() string
	// Pause registers a barrier released by calling the returned function.
	Pause() (resume func())
	// PauseWithKey registers a barrier released by resuming with key.
	PauseWithKey(key string)
}

// EventHandler reacts to region events after a checkpoint lands.
type EventHandler interface {
	Behavior
	HandleEvent(ctx context.Context, ev core.RegionEvent, ctl MovementControl)
}

// DifficultTerrain multiplies movement cost inside the region, except for
// the listed actions.
type DifficultTerrain struct {
	Factor        float64
	IgnoreActions []string
}

func (d DifficultTerrain) Name() string    { return "difficultTerrain" }
func (d DifficultTerrain) Effects() Effect { return EffectCost }

func (d DifficultTerrain) Multiplier(action string, _ float64) float64 {
	if slices.Contains(d.IgnoreActions, action) {
		return 1
	}
	if d.Factor <= 0 {
		return 2
	}
	return d.Factor
}

// BlockEntry vetoes any movement that enters the region.
type BlockEntry struct{}

func (BlockEntry) Name() string    { return "blockEntry" }
func (BlockEntry) Effects() Effect { return EffectPreMove }

func (BlockEntry) AllowMove(_ context.Context, pm PreMove) bool {
	for _, s := range pm.Segments {
		if s.Type == core.SegmentEnter {
			return false
		}
	}
	return true
}

// PauseOnEnter pauses the movement when a token enters the region. With a
// Duration the movement resumes by itself; otherwise it waits for Key.
type PauseOnEnter struct {
	Key      string
	Duration time.Duration
}

func (PauseOnEnter) Name() string    { return "pauseOnEnter" }
func (PauseOnEnter) Effects() Effect { return EffectEvents }

func (p PauseOnEnter) HandleEvent(_ context.Context, ev core.RegionEvent, ctl MovementControl) {
	if ev.Name != core.EventEnter || ctl == nil {
		return
	}
	if p.Duration > 0 {
		resume := ctl.Pause()
		time.AfterFunc(p.Duration, resume)
		return
	}
	key := p.Key
	if key == "" {
		key = "region:" + ev.RegionID
	}
	ctl.PauseWithKey(key)
}

// HandlerFunc adapts a function to an EventHandler for the named events.
// No events means all events.
type HandlerFunc struct {
	ID     string
	Events []core.RegionEventName
	Fn     func(ctx context.Context, ev core.RegionEvent, ctl MovementControl)
}

func (h HandlerFunc) Name() string    { return h.ID }
func (h HandlerFunc) Effects() Effect { return EffectEvents }

func (h HandlerFunc) HandleEvent(ctx context.Context, ev core.RegionEvent, ctl MovementControl) {
	if len(h.Events) > 0 && !slices.Contains(h.Events, ev.Name) {
		return
	}
	h.Fn(ctx, ev, ctl)
}

// BehaviorSpec is the declarative form of a built-in behavior, as found in
// scene files.
type BehaviorSpec struct {
	Type          string        `yaml:"type"`
	Factor        float64       `yaml:"factor"`
	IgnoreActions []string      `yaml:"ignoreActions"`
	Key           string        `yaml:"key"`
	Duration      time.Duration `yaml:"duration"`
}

// BuildBehavior builds a built-in behavior from its spec.
func BuildBehavior(spec BehaviorSpec) (Behavior, error) {
	switch strings.ToLower(spec.Type) {
	case "difficultterrain":
		return DifficultTerrain{Factor: spec.Factor, IgnoreActions: spec.IgnoreActions}, nil
	case "blockentry":
		return BlockEntry{}, nil
	case "pauseonenter":
		return PauseOnEnter{Key: spec.Key, Duration: spec.Duration}, nil
	}
	return nil, fmt.Errorf("unknown region behavior %q", spec.Type)
}
