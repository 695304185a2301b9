// Package metrics records delivery metrics for the tracker.
// Use NewRecorder() for OpenTelemetry metrics or Noop{} when disabled.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records tracker metrics.
type Recorder interface {
	// EventEnqueued records one record entering the queue.
	EventEnqueued(ctx context.Context, eventType string)

	// BatchSent records a batch handed to a transport that accepted it.
	BatchSent(ctx context.Context, transport string, size int)

	// DeliveryFailed records a batch the transport could not deliver.
	DeliveryFailed(ctx context.Context, transport string, size int)

	// EventsRequeued records records put back at the head of the queue.
	EventsRequeued(ctx context.Context, count int)
}

type otelRecorder struct {
	enqueued  metric.Int64Counter
	sent      metric.Int64Counter
	failures  metric.Int64Counter
	requeued  metric.Int64Counter
	batchSize metric.Int64Histogram
}

// NewRecorder returns a Recorder backed by the global OpenTelemetry meter
// provider. If instrument creation fails, it returns Noop{}.
func NewRecorder() Recorder {
	r, err := newOtelRecorder()
	if err != nil {
		return Noop{}
	}
	return r
}

func newOtelRecorder() (*otelRecorder, error) {
	meter := otel.Meter("visiora")

	enqueued, err := meter.Int64Counter("visiora.events.enqueued",
		metric.WithDescription("Number of records enqueued"),
	)
	if err != nil {
		return nil, err
	}

	sent, err := meter.Int64Counter("visiora.batches.sent",
		metric.WithDescription("Number of batches accepted by a transport"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("visiora.delivery.failures",
		metric.WithDescription("Number of failed batch deliveries"),
	)
	if err != nil {
		return nil, err
	}

	requeued, err := meter.Int64Counter("visiora.events.requeued",
		metric.WithDescription("Number of records put back after a failed delivery"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("visiora.batch.size",
		metric.WithDescription("Records per delivered batch"),
	)
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		enqueued:  enqueued,
		sent:      sent,
		failures:  failures,
		requeued:  requeued,
		batchSize: batchSize,
	}, nil
}

func (r *otelRecorder) EventEnqueued(ctx context.Context, eventType string) {
	r.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (r *otelRecorder) BatchSent(ctx context.Context, transport string, size int) {
	attrs := metric.WithAttributes(attribute.String("transport", transport))
	r.sent.Add(ctx, 1, attrs)
	r.batchSize.Record(ctx, int64(size), attrs)
}

func (r *otelRecorder) DeliveryFailed(ctx context.Context, transport string, size int) {
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.Int("batch_size", size),
	))
}

func (r *otelRecorder) EventsRequeued(ctx context.Context, count int) {
	r.requeued.Add(ctx, int64(count))
}

// Noop is a Recorder that does nothing.
type Noop struct{}

// Compile-time interface check.
var _ Recorder = Noop{}

func (Noop) EventEnqueued(context.Context, string)       {}
func (Noop) BatchSent(context.Context, string, int)      {}
func (Noop) DeliveryFailed(context.Context, string, int) {}
func (Noop) EventsRequeued(context.Context, int)         {}
