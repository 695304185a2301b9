package delivery

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// DefaultBeaconBuffer is the number of payloads a Beacon holds before it
// starts rejecting.
const DefaultBeaconBuffer = 64

// Beacon is the fire-and-forget transport.
type Beacon struct {
	url    string
	client HTTPDoer
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// Compile-time interface check.
var _ Transport = (*Beacon)(nil)

// NewBeacon starts a beacon sender for url. A nil client uses a default
// http.Client; a non-positive buffer uses DefaultBeaconBuffer.
func NewBeacon(url string, client HTTPDoer, buffer int, logger *slog.Logger) *Beacon {
	if client == nil {
		client = defaultClient()
	}
	if buffer <= 0 {
		buffer = DefaultBeaconBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Beacon{
		url:    url,
		client: client,
		logger: logger,
		queue:  make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Name implements Transport.
func (b *Beacon) Name() string { return "beacon" }

// Send implements Transport. The outcome only says whether the payload was
// queued, never whether it arrived.
func (b *Beacon) Send(payload []byte, done func(error)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		done(ErrTransportClosed)
		return
	}
	select {
	case b.queue <- payload:
		b.mu.Unlock()
		done(nil)
	default:
		b.mu.Unlock()
		done(ErrBeaconRejected)
	}
}

func (b *Beacon) run() {
	defer close(b.done)
	for payload := range b.queue {
		b.post(payload)
	}
}

func (b *Beacon) post(payload []byte) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		b.logger.Debug("beacon request build failed", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("beacon send failed", slog.String("error", err.Error()))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Close implements Transport. Payloads already queued are still sent.
func (b *Beacon) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
