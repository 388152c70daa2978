package worker

import (
	"context"
	"errors"

	"github.com/OCAP2/movement/internal/logging"
	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/pkg/core"
)

// ErrUnexpectedPayload is returned when an event carries a payload of the wrong type
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// Telemetry receives committed legs and region events for time-series storage
type Telemetry interface {
	RecordCommit(ctx context.Context, c *core.MovementCommit) error
	RecordRegionEvent(ctx context.Context, e *core.RegionEvent) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager *logging.SlogManager
	// Telemetry is optional
	Telemetry Telemetry
}

// Manager records what the movement engine publishes on the event bus
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}
