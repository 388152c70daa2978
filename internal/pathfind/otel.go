package pathfind

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/movement/internal/pathfind"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	started   metric.Int64Counter
	cancelled metric.Int64Counter
	resolved  metric.Int64Counter
	nodes     metric.Int64Histogram
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)
	out.started, err = m.Int64Counter(
		"pathfind.jobs.started",
		metric.WithDescription("Pathfinding jobs created"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}
	out.cancelled, err = m.Int64Counter(
		"pathfind.jobs.cancelled",
		metric.WithDescription("Pathfinding jobs cancelled before resolving"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cancelled counter: %w", err)
	}
	out.resolved, err = m.Int64Counter(
		"pathfind.jobs.resolved",
		metric.WithDescription("Pathfinding jobs resolved with a path"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolved counter: %w", err)
	}
	out.nodes, err = m.Int64Histogram(
		"pathfind.search.nodes",
		metric.WithDescription("Nodes expanded per search"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating nodes histogram: %w", err)
	}
	return &out, nil
}
