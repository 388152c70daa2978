package cache

import "sync"

// MovementIndex maps movement IDs to the token that owns the movement.
type MovementIndex struct {
	mu        sync.RWMutex
	movements map[string]string
}

// NewMovementIndex creates a new MovementIndex
func NewMovementIndex() *MovementIndex {
	return &MovementIndex{
		movements: make(map[string]string),
	}
}

// Get returns the token moving under movementID
func (c *MovementIndex) Get(movementID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.movements[movementID]
	return id, ok
}

// Set records the token of a movement
func (c *MovementIndex) Set(movementID, tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movements[movementID] = tokenID
}

// Delete removes a movement
func (c *MovementIndex) Delete(movementID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.movements, movementID)
}

// DeleteToken removes every movement of tokenID
func (c *MovementIndex) DeleteToken(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for m, t := range c.movements {
		if t == tokenID {
			delete(c.movements, m)
		}
	}
}

// Reset clears the index
func (c *MovementIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movements = make(map[string]string)
}
