package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiora/visiora-agent/internal/loop"
	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/internal/queue"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// fakeTransport records payloads. When hold is set, outcomes are reported
// only when the test calls finish.
type fakeTransport struct {
	name   string
	result error
	hold   bool

	mu       sync.Mutex
	payloads [][]byte
	pending  []func(error)
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(payload []byte, done func(error)) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	if f.hold {
		f.pending = append(f.pending, done)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	done(f.result)
}

func (f *fakeTransport) Close(context.Context) error { return nil }

func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

func (f *fakeTransport) finish(err error) {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, done := range pending {
		done(err)
	}
}

func event(name string) models.Event {
	n := name
	return models.Event{TrackingID: "t", EventType: models.EventCustom, EventName: &n}
}

func names(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, *e.EventName)
	}
	return out
}

func decode(t *testing.T, payload []byte) []string {
	t.Helper()
	var batch models.Batch
	require.NoError(t, json.Unmarshal(payload, &batch))
	return names(batch.Events)
}

func newLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New(clockwork.NewRealClock(), nil)
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

func queued(l *loop.Loop, q *queue.Queue) []string {
	var out []string
	l.Call(func() {
		items := q.Drain()
		out = names(items)
		q.RequeueFront(items)
	})
	return out
}

func TestEngine_EmptyFlushSendsNothing(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	tr := &fakeTransport{name: "fetch"}
	e := NewEngine(q, tr, nil, l, nil, nil)

	l.Call(e.Flush)

	assert.Empty(t, tr.sent())
}

func TestEngine_FlushSendsOneOrderedBatch(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	tr := &fakeTransport{name: "fetch"}
	e := NewEngine(q, tr, nil, l, nil, nil)

	l.Call(func() {
		q.Enqueue(event("a"))
		q.Enqueue(event("b"))
		q.Enqueue(event("c"))
		e.Flush()
	})

	sent := tr.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"a", "b", "c"}, decode(t, sent[0]))
	assert.Empty(t, queued(l, q))
}

func TestEngine_FailureRequeuesAheadOfNewEvents(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	tr := &fakeTransport{name: "fetch", hold: true}
	e := NewEngine(q, tr, nil, l, nil, nil)

	l.Call(func() {
		q.Enqueue(event("a"))
		q.Enqueue(event("b"))
		e.Flush()
	})
	l.Call(func() { q.Enqueue(event("c")) })

	tr.finish(&StatusError{StatusCode: 503})

	assert.Eventually(t, func() bool { return len(queued(l, q)) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, queued(l, q))
}

func TestEngine_SuccessDoesNotRequeue(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	tr := &fakeTransport{name: "fetch", hold: true}
	e := NewEngine(q, tr, nil, l, nil, nil)

	l.Call(func() {
		q.Enqueue(event("a"))
		e.Flush()
	})
	tr.finish(nil)
	l.Call(func() {})

	assert.Empty(t, queued(l, q))
}

func TestEngine_UnencodableEventIsDropped(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	tr := &fakeTransport{name: "fetch"}
	e := NewEngine(q, tr, nil, l, nil, nil)

	bad := event("bad")
	bad.Properties = map[string]any{"ratio": math.Inf(1)}
	l.Call(func() {
		q.Enqueue(event("a"))
		q.Enqueue(bad)
		q.Enqueue(event("b"))
		e.Flush()
	})

	sent := tr.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"a", "b"}, decode(t, sent[0]))
	assert.Empty(t, queued(l, q))

	l.Call(func() {
		q.Enqueue(bad)
		e.Flush()
	})
	assert.Len(t, tr.sent(), 1)
	assert.Empty(t, queued(l, q))
}

func TestEngine_BeaconRejectionFallsBackToFetch(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	beacon := &fakeTransport{name: "beacon", result: ErrBeaconRejected}
	fetch := &fakeTransport{name: "fetch"}
	e := NewEngine(q, beacon, fetch, l, nil, nil)

	l.Call(func() {
		q.Enqueue(event("a"))
		e.Flush()
	})

	assert.Eventually(t, func() bool { return len(fetch.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, decode(t, fetch.sent()[0]))
	assert.Empty(t, queued(l, q))
}

func TestEngine_BeaconRejectionWithoutFallbackRequeues(t *testing.T) {
	l := newLoop(t)
	q := queue.New(10, nil)
	beacon := &fakeTransport{name: "beacon", result: ErrBeaconRejected}
	e := NewEngine(q, beacon, nil, l, nil, nil)

	l.Call(func() {
		q.Enqueue(event("a"))
		e.Flush()
	})

	assert.Eventually(t, func() bool { return len(queued(l, q)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSelect(t *testing.T) {
	primary, fallback := Select(dom.Capabilities{Beacon: true}, "http://x/ingest", nil, nil)
	assert.Equal(t, "beacon", primary.Name())
	require.NotNil(t, fallback)
	assert.Equal(t, "fetch", fallback.Name())
	require.NoError(t, primary.Close(context.Background()))

	primary, fallback = Select(dom.Capabilities{}, "http://x/ingest", nil, nil)
	assert.Equal(t, "fetch", primary.Name())
	assert.Nil(t, fallback)
}

func TestEngine_CloseJoinsErrors(t *testing.T) {
	l := newLoop(t)
	e := NewEngine(queue.New(10, nil), &failingClose{name: "beacon"}, &failingClose{name: "fetch"}, l, nil, nil)

	err := e.Close(context.Background())
	assert.Error(t, err)
	assert.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 2)
}

type failingClose struct{ name string }

func (f *failingClose) Name() string { return f.name }

func (f *failingClose) Send(_ []byte, done func(error)) { done(nil) }

func (f *failingClose) Close(context.Context) error {
	return errors.New(f.name + " close failed")
}
