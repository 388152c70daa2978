// internal/storage/storage.go
package storage

import "github.com/OCAP2/movement/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Movement recording. CommitMovement is called once per checkpoint leg,
	// after the leg passed every veto.
	CommitMovement(c *core.MovementCommit) error
	ClearMovementHistory(tokenID string) error
	LoadMovementHistory(tokenID string) ([]core.MeasuredWaypoint, error)

	// Event recording
	RecordRegionEvent(e *core.RegionEvent) error
}

// Exportable is an optional interface for storage backends that write their
// contents to a file when closed.
type Exportable interface {
	GetExportedFilePath() string
}

// Flusher is an optional interface for backends that buffer writes.
type Flusher interface {
	Flush() error
}
