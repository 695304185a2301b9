// Package tracker is the embeddable analytics agent.
//
// Init wires the identity store, enricher, queue, delivery engine and
// activity observers around a host Window, records the initial pageview and
// starts the agent's loop. Every public method is safe to call from any
// goroutine, and on a nil *Agent, which is what Init returns when the
// configuration is invalid.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/visiora/visiora-agent/internal/delivery"
	"github.com/visiora/visiora-agent/internal/enrich"
	"github.com/visiora/visiora-agent/internal/identity"
	"github.com/visiora/visiora-agent/internal/loop"
	"github.com/visiora/visiora-agent/internal/metrics"
	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/internal/observer"
	"github.com/visiora/visiora-agent/internal/queue"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// IDs are the identifiers the agent currently stamps on records.
type IDs struct {
	VisitorID string `json:"visitorId"`
	SessionID string `json:"sessionId"`
}

// Agent owns all tracking state for one page load.
type Agent struct {
	cfg     Config
	win     *dom.Window
	loop    *loop.Loop
	ids     *identity.Store
	queue   *queue.Queue
	engine  *delivery.Engine
	obs     *observer.Observers
	metrics metrics.Recorder
	logger  *slog.Logger

	stopFlush    func()
	shutdownOnce sync.Once
	shutdownErr  error
}

// Init validates cfg and starts tracking win. On a configuration error it
// logs the problem and returns it without attaching listeners or touching
// storage.
func Init(cfg Config, win *dom.Window, opts ...Option) (*Agent, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = newLogger(o, cfg.Debug)
	}

	err := cfg.Validate()
	if err == nil && win == nil {
		err = ErrMissingWindow
	}
	if err != nil {
		logger.Error("visiora init aborted", slog.String("error", err.Error()))
		return nil, err
	}
	cfg = cfg.withDefaults()

	clock := o.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rec := o.metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}

	a := &Agent{
		cfg:     cfg,
		win:     win,
		loop:    loop.New(clock, logger),
		ids:     identity.New(win.LocalStorage(), win.SessionStorage(), cfg.SessionTimeout, clock, logger),
		metrics: rec,
		logger:  logger,
	}
	a.queue = queue.New(cfg.BatchSize, func() { a.engine.Flush() })
	primary, fallback := delivery.Select(win.Capabilities(), cfg.APIURL, o.client, logger)
	a.engine = delivery.NewEngine(a.queue, primary, fallback, a.loop, rec, logger)
	a.obs = observer.New(win, a.loop, sink{a}, a.ids, observer.Options{
		ScrollThresholds:      cfg.ScrollThresholds,
		HeartbeatInterval:     cfg.HeartbeatInterval,
		SessionTimeout:        cfg.SessionTimeout,
		PerformanceSampleRate: cfg.PerformanceSampleRate,
	})

	// The loop is not running yet, so this is the only goroutine touching
	// agent state.
	a.emit(models.PageView{})
	a.obs.Attach()
	a.stopFlush = a.loop.Every(cfg.FlushInterval, a.engine.Flush)
	a.loop.Start()

	logger.Debug("visiora initialised",
		slog.String("tracking_id", cfg.TrackingID),
		slog.String("transport", primary.Name()))
	return a, nil
}

func newLogger(o options, debug bool) *slog.Logger {
	w := o.logWriter
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelError
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).With(slog.String("component", "visiora"))
}

// emit stamps p with identity and context and queues it. Loop only.
func (a *Agent) emit(p models.Payload) {
	id := models.Identity{
		TrackingID: a.cfg.TrackingID,
		VisitorID:  a.ids.VisitorID(),
		SessionID:  a.ids.SessionID(),
	}
	ev := models.Build(enrich.Build(a.win.Snapshot()), id, a.loop.Clock().Now(), p)
	// A record that cannot be encoded would fail every batch it joins.
	if _, err := json.Marshal(ev); err != nil {
		a.logger.Debug("event dropped, not encodable",
			slog.String("event_type", string(ev.EventType)),
			slog.String("error", err.Error()))
		return
	}
	a.metrics.EventEnqueued(context.Background(), string(ev.EventType))
	a.logger.Debug("event queued", slog.String("event_type", string(ev.EventType)))
	a.queue.Enqueue(ev)
}

// sink adapts the agent to the observers. Its methods already run on the
// loop.
type sink struct{ a *Agent }

func (s sink) Emit(p models.Payload) { s.a.emit(p) }
func (s sink) Flush()                { s.a.engine.Flush() }

// Track records a custom event. The category, action, label and value
// properties also populate the matching record fields. props is copied
// before Track returns.
func (a *Agent) Track(name string, props map[string]any) {
	if a == nil {
		return
	}
	p := customPayload(name, maps.Clone(props))
	a.loop.Post(func() { a.emit(p) })
}

func customPayload(name string, props map[string]any) models.Custom {
	p := models.Custom{Name: name, Properties: props}
	if s, ok := props["category"].(string); ok {
		p.Category = s
	}
	if s, ok := props["action"].(string); ok {
		p.Action = s
	}
	if s, ok := props["label"].(string); ok {
		p.Label = s
	}
	if v, ok := number(props["value"]); ok {
		p.Value = &v
	}
	return p
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Identify ties the visitor to userID. traits is copied before Identify
// returns.
func (a *Agent) Identify(userID string, traits map[string]any) {
	if a == nil {
		return
	}
	p := models.Identify{UserID: userID, Traits: maps.Clone(traits)}
	a.loop.Post(func() { a.emit(p) })
}

// PageView records a pageview for the window's current location, typically
// after a client-side navigation.
func (a *Agent) PageView() {
	if a == nil {
		return
	}
	a.loop.Post(func() { a.emit(models.PageView{}) })
}

// Flush sends everything queued now instead of at the next interval.
func (a *Agent) Flush() {
	if a == nil {
		return
	}
	a.loop.Post(a.engine.Flush)
}

// IDs returns the current visitor and session ids. After Shutdown it
// returns zero IDs.
func (a *Agent) IDs() IDs {
	var ids IDs
	if a == nil {
		return ids
	}
	a.loop.Call(func() {
		ids = IDs{VisitorID: a.ids.VisitorID(), SessionID: a.ids.SessionID()}
	})
	return ids
}

// Shutdown detaches every listener, sends what is still queued and waits
// for pending deliveries until ctx is done. It is safe to call more than
// once.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.shutdownOnce.Do(func() {
		a.loop.Call(func() {
			a.stopFlush()
			a.obs.Detach()
			a.engine.Flush()
		})
		// A batch the beacon rejected is handed to the fallback by a task
		// posted during the flush; let it reach the transport before closing.
		a.loop.Call(func() {})
		// Delivery outcomes still post to the loop, so it stops last.
		a.shutdownErr = a.engine.Close(ctx)
		a.loop.Stop()
		a.logger.Debug("visiora shut down")
	})
	return a.shutdownErr
}
