package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Fetch is the confirmable transport: each payload is one POST whose status
// decides success.
type Fetch struct {
	url     string
	client  HTTPDoer
	timeout time.Duration

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Compile-time interface check.
var _ Transport = (*Fetch)(nil)

// NewFetch creates a confirmable transport for url. A nil client uses a
// default http.Client; a non-positive timeout uses DefaultRequestTimeout.
func NewFetch(url string, client HTTPDoer, timeout time.Duration) *Fetch {
	if client == nil {
		client = defaultClient()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Fetch{url: url, client: client, timeout: timeout}
}

// Name implements Transport.
func (f *Fetch) Name() string { return "fetch" }

// Send implements Transport. The request runs on its own goroutine, bounded
// only by the transport timeout.
func (f *Fetch) Send(payload []byte, done func(error)) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		done(ErrTransportClosed)
		return
	}
	f.inflight.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.inflight.Done()
		done(f.post(payload))
	}()
}

func (f *Fetch) post(payload []byte) error {
	// Not tied to any caller, so a request survives Shutdown like a
	// keep-alive fetch survives unload.
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Close implements Transport. It waits for in-flight requests.
func (f *Fetch) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		f.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
