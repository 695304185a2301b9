package tracker

import (
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/visiora/visiora-agent/internal/delivery"
	"github.com/visiora/visiora-agent/internal/metrics"
)

// Option customises an Agent.
type Option func(*options)

type options struct {
	clock     clockwork.Clock
	logger    *slog.Logger
	logWriter io.Writer
	metrics   metrics.Recorder
	client    delivery.HTTPDoer
}

// WithClock sets the clock used for timestamps, sessions and timers.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger replaces the agent's logger. The Debug flag no longer
// controls the level when a logger is supplied.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogWriter sets where the default JSON logger writes. Defaults to
// stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithMetrics sets the metrics recorder. Defaults to metrics.NewRecorder().
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithHTTPClient sets the client both transports send with.
func WithHTTPClient(c delivery.HTTPDoer) Option {
	return func(o *options) { o.client = c }
}
