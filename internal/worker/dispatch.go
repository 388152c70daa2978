package worker

import (
	"context"
	"fmt"

	"github.com/OCAP2/movement/internal/dispatcher"
	"github.com/OCAP2/movement/pkg/core"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Region events - buffered, the engine never waits on persistence
	for _, name := range core.RegionEvents {
		d.Register(string(name), m.handleRegionEvent, dispatcher.Buffered(1000), dispatcher.Logged())
	}

	// Committed legs are already durable - buffered telemetry only
	d.Register(core.TopicCommit, m.handleCommit, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleRegionEvent(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.RegionEvent)
	if !ok {
		return nil, fmt.Errorf("%w: %s carried %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}

	if m.hasBackend() {
		if err := m.backend.RecordRegionEvent(&ev); err != nil {
			return nil, fmt.Errorf("failed to record region event: %w", err)
		}
	}

	if m.deps.Telemetry != nil {
		if err := m.deps.Telemetry.RecordRegionEvent(context.Background(), &ev); err != nil {
			m.deps.LogManager.WriteLog("handleRegionEvent", fmt.Sprintf("telemetry write failed: %v", err), "WARN")
		}
	}

	return nil, nil
}

func (m *Manager) handleCommit(e dispatcher.Event) (any, error) {
	c, ok := e.Payload.(core.MovementCommit)
	if !ok {
		return nil, fmt.Errorf("%w: %s carried %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}

	if m.deps.Telemetry == nil {
		return nil, nil
	}
	if err := m.deps.Telemetry.RecordCommit(context.Background(), &c); err != nil {
		return nil, fmt.Errorf("failed to record commit telemetry: %w", err)
	}
	return nil, nil
}
