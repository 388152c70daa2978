package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/movement/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// newMetrics registers the dispatcher instruments on the global meter, which
// is a no-op until a meter provider is set. depths reports the queued event
// count per buffered topic.
func newMetrics(depths func() map[string]int) (*metrics, error) {
	m := otel.Meter(instrumentationName)

	queueSize, err := m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for topic, n := range depths() {
			o.ObserveInt64(queueSize, int64(n), metric.WithAttributes(attribute.String("topic", topic)))
		}
		return nil
	}, queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	var out metrics
	out.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed by buffered handlers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	out.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	out.duration, err = m.Float64Histogram(
		"dispatcher.event.duration",
		metric.WithDescription("Time spent in logged handlers"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &out, nil
}
