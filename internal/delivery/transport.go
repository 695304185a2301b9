// Package delivery drains the event queue and transmits batches.
//
// Two transports implement the same strategy interface. Beacon is
// fire-and-forget: it only reports whether the payload was accepted for
// sending, and pending beacons are flushed on Close so they survive
// shutdown. Fetch is confirmable: the outcome is the HTTP status, and a
// failed batch goes back to the head of the queue for the next flush.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport sends one serialized batch.
type Transport interface {
	// Name identifies the transport in logs and metrics.
	Name() string

	// Send hands payload to the transport. done is called exactly once with
	// the outcome, possibly on another goroutine. Send never blocks on I/O.
	Send(payload []byte, done func(error))

	// Close stops accepting payloads and waits for pending sends until ctx
	// is done.
	Close(ctx context.Context) error
}

// Sentinel errors for delivery.
var (
	// ErrBeaconRejected means the beacon could not queue the payload.
	ErrBeaconRejected = errors.New("beacon rejected payload")

	// ErrTransportClosed means Send was called after Close.
	ErrTransportClosed = errors.New("transport closed")
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingestion endpoint returned status %d", e.StatusCode)
}

// DefaultRequestTimeout bounds a single POST.
const DefaultRequestTimeout = 10 * time.Second

func defaultClient() HTTPDoer {
	return &http.Client{Timeout: DefaultRequestTimeout}
}
