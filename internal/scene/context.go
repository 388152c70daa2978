// Package scene holds the playing surface a movement happens on: its grid,
// its walls and its regions.
package scene

import (
	"slices"
	"sync"

	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/region"
	"github.com/OCAP2/movement/internal/walls"
)

// Context holds the current scene
type Context struct {
	mu      sync.RWMutex
	name    string
	grid    grid.Grid
	walls   *walls.Set
	regions []*region.Region
}

// New creates a scene. A nil wall set means no walls.
func New(name string, g grid.Grid, w *walls.Set, regions ...*region.Region) *Context {
	if w == nil {
		w = walls.NewSet()
	}
	return &Context{name: name, grid: g, walls: w, regions: slices.Clone(regions)}
}

func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Grid is fixed for the lifetime of the scene.
func (c *Context) Grid() grid.Grid { return c.grid }

func (c *Context) Walls() *walls.Set { return c.walls }

// Regions returns a snapshot of the regions in insertion order.
func (c *Context) Regions() []*region.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.regions)
}

func (c *Context) Region(id string) (*region.Region, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.regions {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// SetRegion adds r or replaces the region with the same ID.
func (c *Context) SetRegion(r *region.Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, old := range c.regions {
		if old.ID() == r.ID() {
			c.regions[k] = r
			return
		}
	}
	c.regions = append(c.regions, r)
}

func (c *Context) RemoveRegion(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.regions)
	c.regions = slices.DeleteFunc(c.regions, func(r *region.Region) bool { return r.ID() == id })
	return len(c.regions) != n
}
