// internal/storage/memory/memory.go
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/movement/internal/config"
	"github.com/OCAP2/movement/pkg/core"
)

// TokenRecord groups a token's committed legs with its recorded history
type TokenRecord struct {
	TokenID string
	Commits []core.MovementCommit
	History []core.MeasuredWaypoint
}

// Backend stores movement data in memory and exports to JSON
type Backend struct {
	cfg       config.MemoryConfig
	session   string
	startTime time.Time

	tokens       map[string]*TokenRecord // keyed by token ID
	regionEvents []core.RegionEvent

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		session:   "session",
		startTime: time.Now(),
		tokens:    make(map[string]*TokenRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the recorded data when an output directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// StartSession resets all collections and names the session used for the
// export file.
func (b *Backend) StartSession(name string, start time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = name
	b.startTime = start
	b.tokens = make(map[string]*TokenRecord)
	b.regionEvents = nil
	b.lastExportPath = ""
}

func (b *Backend) record(tokenID string) *TokenRecord {
	r, ok := b.tokens[tokenID]
	if !ok {
		r = &TokenRecord{TokenID: tokenID}
		b.tokens[tokenID] = r
	}
	return r
}

// CommitMovement stores the leg and appends its waypoints to the token history
func (b *Backend) CommitMovement(c *core.MovementCommit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := *c
	stored.Waypoints = slices.Clone(c.Waypoints)
	stored.Pending = slices.Clone(c.Pending)

	r := b.record(c.TokenID)
	r.Commits = append(r.Commits, stored)
	r.History = append(r.History, stored.Waypoints...)
	return nil
}

// ClearMovementHistory drops the recorded history of a token. Committed legs
// are kept for the export.
func (b *Backend) ClearMovementHistory(tokenID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.tokens[tokenID]; ok {
		r.History = nil
	}
	return nil
}

// LoadMovementHistory returns a copy of the token's recorded history
func (b *Backend) LoadMovementHistory(tokenID string) ([]core.MeasuredWaypoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.tokens[tokenID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(r.History), nil
}

// RecordRegionEvent records a region crossing event
func (b *Backend) RecordRegionEvent(e *core.RegionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regionEvents = append(b.regionEvents, *e)
	return nil
}

// Commits returns a copy of the legs committed for a token
func (b *Backend) Commits(tokenID string) []core.MovementCommit {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.tokens[tokenID]
	if !ok {
		return nil
	}
	return slices.Clone(r.Commits)
}

// RegionEvents returns a copy of all recorded region events
func (b *Backend) RegionEvents() []core.RegionEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.regionEvents)
}
