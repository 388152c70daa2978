package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/movement/pkg/core"
)

func TestTokenCache_NewTokenCache(t *testing.T) {
	cache := NewTokenCache()

	require.NotNil(t, cache)
	assert.Zero(t, cache.Len())
	assert.Empty(t, cache.IDs())
}

func TestTokenCache_AddAndGet(t *testing.T) {
	cache := NewTokenCache()

	cache.Add(core.Token{ID: "goblin", Name: "Goblin", Position: core.Waypoint{X: 100, Width: 1, Height: 1}})

	got, ok := cache.Get("goblin")
	require.True(t, ok, "expected to find token goblin")
	assert.Equal(t, "Goblin", got.Name)
	assert.Equal(t, 100, got.Position.X)
}

func TestTokenCache_GetNotFound(t *testing.T) {
	cache := NewTokenCache()

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestTokenCache_GetReturnsCopyOfHistory(t *testing.T) {
	cache := NewTokenCache()
	cache.Add(core.Token{ID: "t", History: []core.MeasuredWaypoint{{Cost: 1}}})

	got, _ := cache.Get("t")
	got.History[0].Cost = 99
	got.History = append(got.History, core.MeasuredWaypoint{})

	again, _ := cache.Get("t")
	require.Len(t, again.History, 1)
	assert.Equal(t, 1.0, again.History[0].Cost)
}

func TestTokenCache_Update(t *testing.T) {
	cache := NewTokenCache()
	cache.Add(core.Token{ID: "t"})

	ok := cache.Update("t", func(tok *core.Token) {
		tok.Position.X = 300
		tok.History = append(tok.History, core.MeasuredWaypoint{Distance: 5})
	})
	require.True(t, ok)

	got, _ := cache.Get("t")
	assert.Equal(t, 300, got.Position.X)
	assert.Len(t, got.History, 1)

	assert.False(t, cache.Update("missing", func(*core.Token) {}))
}

func TestTokenCache_DeleteAndReset(t *testing.T) {
	cache := NewTokenCache()
	cache.Add(core.Token{ID: "b"})
	cache.Add(core.Token{ID: "a"})

	assert.Equal(t, []string{"a", "b"}, cache.IDs())
	assert.True(t, cache.Delete("a"))
	assert.False(t, cache.Delete("a"))
	assert.Equal(t, 1, cache.Len())

	cache.Reset()
	assert.Zero(t, cache.Len())

	cache.Add(core.Token{ID: "c"})
	_, ok := cache.Get("c")
	assert.True(t, ok, "expected to find token added after reset")
}

func TestTokenCache_Concurrent(t *testing.T) {
	cache := NewTokenCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			cache.Add(core.Token{ID: fmt.Sprintf("t%d", id)})
		}(i)
		go func(id int) {
			defer wg.Done()
			cache.Get(fmt.Sprintf("t%d", id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}

func TestMovementIndex(t *testing.T) {
	idx := NewMovementIndex()

	idx.Set("m1", "goblin")
	idx.Set("m2", "goblin")
	idx.Set("m3", "orc")

	tok, ok := idx.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "goblin", tok)

	idx.Delete("m3")
	_, ok = idx.Get("m3")
	assert.False(t, ok)

	idx.DeleteToken("goblin")
	_, ok = idx.Get("m2")
	assert.False(t, ok)

	idx.Set("m4", "orc")
	idx.Reset()
	_, ok = idx.Get("m4")
	assert.False(t, ok)
}

// SafeCounter tests

func TestSafeCounter_InitialValue(t *testing.T) {
	c := &SafeCounter{}
	assert.Equal(t, int(0), c.Value())
}

func TestSafeCounter_Set(t *testing.T) {
	c := &SafeCounter{}

	c.Set(42)
	assert.Equal(t, int(42), c.Value())

	c.Set(0)
	assert.Equal(t, int(0), c.Value())
}

func TestSafeCounter_IncDec(t *testing.T) {
	c := &SafeCounter{}

	c.Inc()
	c.Inc()
	c.Dec()
	assert.Equal(t, int(1), c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	c := &SafeCounter{}
	var wg sync.WaitGroup

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, int(1000), c.Value())
}
