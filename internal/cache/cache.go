package cache

import (
	"slices"
	"sync"

	"github.com/OCAP2/movement/pkg/core"
)

// TokenCache holds the authoritative state of every token the engine moves.
// Reads return copies so callers never alias the cached history.
type TokenCache struct {
	m      sync.RWMutex
	tokens map[string]core.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]core.Token),
	}
}

func (c *TokenCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.tokens = make(map[string]core.Token)
}

// Add stores a token, replacing any token with the same ID.
func (c *TokenCache) Add(t core.Token) {
	c.m.Lock()
	defer c.m.Unlock()
	t.History = slices.Clone(t.History)
	c.tokens[t.ID] = t
}

func (c *TokenCache) Get(id string) (core.Token, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	t, ok := c.tokens[id]
	if !ok {
		return core.Token{}, false
	}
	t.History = slices.Clone(t.History)
	return t, true
}

// Update applies fn to the cached token under the write lock.
func (c *TokenCache) Update(id string, fn func(t *core.Token)) bool {
	c.m.Lock()
	defer c.m.Unlock()
	t, ok := c.tokens[id]
	if !ok {
		return false
	}
	fn(&t)
	c.tokens[id] = t
	return true
}

func (c *TokenCache) Delete(id string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.tokens[id]
	delete(c.tokens, id)
	return ok
}

// IDs returns the cached token IDs in sorted order.
func (c *TokenCache) IDs() []string {
	c.m.RLock()
	defer c.m.RUnlock()
	ids := make([]string, 0, len(c.tokens))
	for id := range c.tokens {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *TokenCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.tokens)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
