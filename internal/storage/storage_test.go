// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/stretchr/testify/assert"
)

type nopBackend struct {
	commits int
}

func (b *nopBackend) Init() error                               { return nil }
func (b *nopBackend) Close() error                              { return nil }
func (b *nopBackend) CommitMovement(*core.MovementCommit) error { b.commits++; return nil }
func (b *nopBackend) ClearMovementHistory(string) error         { return nil }
func (b *nopBackend) RecordRegionEvent(*core.RegionEvent) error { return nil }
func (b *nopBackend) LoadMovementHistory(string) ([]core.MeasuredWaypoint, error) {
	return nil, nil
}

var _ storage.Backend = (*nopBackend)(nil)

func TestOptionalInterfacesAreNotImplied(t *testing.T) {
	var b storage.Backend = &nopBackend{}

	_, exportable := b.(storage.Exportable)
	_, flusher := b.(storage.Flusher)
	assert.False(t, exportable)
	assert.False(t, flusher)

	assert.NoError(t, b.CommitMovement(&core.MovementCommit{}))
	assert.Equal(t, 1, b.(*nopBackend).commits)
}
