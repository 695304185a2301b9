package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/visiora/visiora-agent/internal/metrics"
	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/internal/queue"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// Poster schedules a closure on the tracker loop.
type Poster interface {
	Post(fn func()) bool
}

// Engine drains the queue into one batch per flush and routes it through
// the selected transport. All methods except Close must run on the loop.
type Engine struct {
	queue    *queue.Queue
	primary  Transport
	fallback Transport
	loop     Poster
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Select picks the transports once from the host capabilities. With beacon
// support, Fetch stays available for payloads the beacon refuses.
func Select(caps dom.Capabilities, url string, client HTTPDoer, logger *slog.Logger) (primary, fallback Transport) {
	fetch := NewFetch(url, client, DefaultRequestTimeout)
	if caps.Beacon {
		return NewBeacon(url, client, DefaultBeaconBuffer, logger), fetch
	}
	return fetch, nil
}

// NewEngine wires q to the transports. fallback may be nil.
func NewEngine(q *queue.Queue, primary, fallback Transport, loop Poster, rec metrics.Recorder, logger *slog.Logger) *Engine {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		queue:    q,
		primary:  primary,
		fallback: fallback,
		loop:     loop,
		metrics:  rec,
		logger:   logger,
	}
}

// Flush sends everything queued as one batch. An empty queue is a no-op.
func (e *Engine) Flush() {
	if e.queue.Len() == 0 {
		return
	}
	batch := e.queue.Drain()

	payload, err := json.Marshal(models.Batch{Events: batch})
	if err != nil {
		// Retrying cannot fix an encode error, so the offending records are
		// dropped rather than requeued.
		batch = e.encodable(batch)
		if len(batch) == 0 {
			return
		}
		if payload, err = json.Marshal(models.Batch{Events: batch}); err != nil {
			e.logger.Debug("batch encode failed, dropped",
				slog.Int("events", len(batch)),
				slog.String("error", err.Error()))
			return
		}
	}
	e.send(e.primary, batch, payload)
}

// encodable returns the records of batch that encode on their own.
func (e *Engine) encodable(batch []models.Event) []models.Event {
	kept := batch[:0:0]
	for _, ev := range batch {
		if _, err := json.Marshal(ev); err != nil {
			e.logger.Debug("dropping unencodable event",
				slog.String("event_type", string(ev.EventType)),
				slog.String("error", err.Error()))
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func (e *Engine) send(t Transport, batch []models.Event, payload []byte) {
	t.Send(payload, func(err error) {
		done := func() { e.complete(t, batch, payload, err) }
		if !e.loop.Post(done) {
			e.logger.Debug("delivery outcome dropped after shutdown",
				slog.String("transport", t.Name()),
				slog.Int("events", len(batch)))
		}
	})
}

func (e *Engine) complete(t Transport, batch []models.Event, payload []byte, err error) {
	ctx := context.Background()
	if err == nil {
		e.metrics.BatchSent(ctx, t.Name(), len(batch))
		e.logger.Debug("batch sent",
			slog.String("transport", t.Name()),
			slog.Int("events", len(batch)))
		return
	}

	if errors.Is(err, ErrBeaconRejected) && e.fallback != nil {
		e.logger.Debug("beacon rejected batch, retrying with fetch", slog.Int("events", len(batch)))
		e.send(e.fallback, batch, payload)
		return
	}

	e.metrics.DeliveryFailed(ctx, t.Name(), len(batch))
	e.queue.RequeueFront(batch)
	e.metrics.EventsRequeued(ctx, len(batch))
	e.logger.Debug("batch delivery failed, requeued",
		slog.String("transport", t.Name()),
		slog.Int("events", len(batch)),
		slog.String("error", err.Error()))
}

// Close drains both transports.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	for _, t := range []Transport{e.primary, e.fallback} {
		if t == nil {
			continue
		}
		if err := t.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
