// Package observer turns DOM signals into tracker records.
//
// Listeners registered on the window never touch state. Each one posts a
// task to the loop, and every observer field is read and written from loop
// tasks only.
package observer

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// Defaults for Options.
const (
	DefaultScrollDebounce        = 100 * time.Millisecond
	DefaultHeartbeatInterval     = 30 * time.Second
	DefaultSessionTimeout        = 30 * time.Minute
	DefaultPerformanceSampleRate = 0.1
)

// DefaultScrollThresholds are the scroll depths, in percent, reported once
// per page.
var DefaultScrollThresholds = []int{25, 50, 75, 100}

// Scheduler runs tasks on the tracker loop. *loop.Loop implements it.
type Scheduler interface {
	Post(fn func()) bool
	After(d time.Duration, fn func()) (cancel func())
	Every(d time.Duration, fn func()) (cancel func())
	Clock() clockwork.Clock
}

// Sink receives what the observers produce. Calls happen on the loop.
type Sink interface {
	Emit(p models.Payload)
	Flush()
}

// Session exposes the current session. *identity.Store implements it.
type Session interface {
	SessionID() string
	SessionStart() time.Time
}

// Options tune the observers. Zero values mean the defaults.
type Options struct {
	ScrollThresholds      []int
	ScrollDebounce        time.Duration
	HeartbeatInterval     time.Duration
	SessionTimeout        time.Duration
	PerformanceSampleRate float64
}

func (o Options) withDefaults() Options {
	if len(o.ScrollThresholds) == 0 {
		o.ScrollThresholds = DefaultScrollThresholds
	}
	if o.ScrollDebounce <= 0 {
		o.ScrollDebounce = DefaultScrollDebounce
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.PerformanceSampleRate <= 0 {
		o.PerformanceSampleRate = DefaultPerformanceSampleRate
	}
	return o
}

// Observers owns every listener and timer the tracker attaches.
type Observers struct {
	win     *dom.Window
	sched   Scheduler
	sink    Sink
	session Session
	opts    Options

	scroll       scrollState
	perfDone     bool
	lastActivity time.Time

	detach []func()
}

// New creates the observers. Nothing is attached until Attach.
func New(win *dom.Window, sched Scheduler, sink Sink, session Session, opts Options) *Observers {
	opts = opts.withDefaults()
	return &Observers{
		win:     win,
		sched:   sched,
		sink:    sink,
		session: session,
		opts:    opts,
		scroll:  newScrollState(opts.ScrollThresholds),
	}
}

// Attach registers the listeners and starts the heartbeat. It must run on
// the loop.
func (o *Observers) Attach() {
	o.lastActivity = o.sched.Clock().Now()

	o.listen(dom.EventClick, o.onClick)
	o.listen(dom.EventSubmit, o.onSubmit)
	o.listen(dom.EventScroll, func(dom.Event) { o.onScroll() })
	o.listen(dom.EventVisibilityChange, func(dom.Event) { o.onVisibilityChange() })
	o.listen(dom.EventPageHide, func(dom.Event) { o.sink.Flush() })
	o.listen(dom.EventBeforeUnload, func(dom.Event) { o.sink.Flush() })

	for _, t := range []dom.EventType{dom.EventMouseMove, dom.EventMouseDown, dom.EventKeyDown, dom.EventTouchStart, dom.EventScroll} {
		o.listen(t, func(dom.Event) { o.touch() })
	}

	o.watchPerformance()
	o.detach = append(o.detach, o.sched.Every(o.opts.HeartbeatInterval, o.heartbeat))
}

// Detach removes every listener and cancels pending timers.
func (o *Observers) Detach() {
	for _, fn := range o.detach {
		fn()
	}
	o.detach = nil
	o.scroll.cancel()
}

// listen registers fn so that it runs as a loop task.
func (o *Observers) listen(t dom.EventType, fn func(dom.Event)) {
	remove := o.win.AddEventListener(t, func(ev dom.Event) {
		o.sched.Post(func() { fn(ev) })
	})
	o.detach = append(o.detach, remove)
}

func (o *Observers) touch() {
	o.lastActivity = o.sched.Clock().Now()
}

func (o *Observers) onVisibilityChange() {
	if o.win.Snapshot().Hidden {
		o.sink.Flush()
	}
}
