// Package dom models the browser environment the tracker runs in: the
// ambient page state, the listener registry the host dispatches signals
// through, and the two storage scopes.
//
// The host owns a Window, keeps its Snapshot current (Update, Navigate) and
// calls Dispatch for every DOM signal. The tracker only reads.
package dom

import (
	"net/url"
	"slices"
	"sync"

	"github.com/visiora/visiora-agent/pkg/storage"
)

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// NavigationTiming holds the navigation timing marks of the current page in
// milliseconds relative to an arbitrary origin. Zero means "not reached".
type NavigationTiming struct {
	NavigationStart          float64
	DomainLookupStart        float64
	DomainLookupEnd          float64
	ConnectStart             float64
	ConnectEnd               float64
	RequestStart             float64
	ResponseStart            float64
	ResponseEnd              float64
	DOMContentLoadedEventEnd float64
	LoadEventEnd             float64
}

// Snapshot is the ambient state of the page at one instant.
type Snapshot struct {
	URL            string
	Title          string
	Referrer       string
	UserAgent      string
	Language       string
	Timezone       string
	Screen         Size
	Viewport       Size
	ScrollY        int
	DocumentHeight int
	Hidden         bool
	Loaded         bool
	Timing         *NavigationTiming
}

// Location parses the snapshot URL. It returns nil when the URL is malformed.
func (s Snapshot) Location() *url.URL {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil
	}
	return u
}

// Capabilities are the host features probed once at tracker start-up.
type Capabilities struct {
	// Beacon reports whether an unload-surviving, fire-and-forget transport
	// is available.
	Beacon bool
}

// Window is the host environment handed to the tracker.
type Window struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	caps      Capabilities
	local     storage.Storage
	session   storage.Storage
	listeners map[EventType][]registration
	nextID    uint64
}

type registration struct {
	id uint64
	fn Listener
}

// NewWindow creates a window with the given initial state, capabilities and
// storage scopes. Nil scopes are replaced with fresh Memory storage.
func NewWindow(snapshot Snapshot, caps Capabilities, local, session storage.Storage) *Window {
	if local == nil {
		local = storage.NewMemory()
	}
	if session == nil {
		session = storage.NewMemory()
	}
	return &Window{
		snapshot:  snapshot,
		caps:      caps,
		local:     local,
		session:   session,
		listeners: make(map[EventType][]registration),
	}
}

// Snapshot returns a copy of the current page state.
func (w *Window) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.snapshot
	if s.Timing != nil {
		t := *s.Timing
		s.Timing = &t
	}
	return s
}

// Update mutates the page state under the window lock.
func (w *Window) Update(fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.snapshot)
}

// Navigate records a client-side navigation: the current URL becomes the
// referrer and the new URL and title take its place.
func (w *Window) Navigate(rawURL, title string) {
	w.Update(func(s *Snapshot) {
		s.Referrer = s.URL
		s.URL = rawURL
		s.Title = title
		s.ScrollY = 0
	})
}

// Capabilities returns the host's feature set.
func (w *Window) Capabilities() Capabilities {
	return w.caps
}

// LocalStorage returns the long-lived storage scope.
func (w *Window) LocalStorage() storage.Storage { return w.local }

// SessionStorage returns the tab-scoped storage scope.
func (w *Window) SessionStorage() storage.Storage { return w.session }

// AddEventListener registers fn for events of type t.
// It returns a function that removes the listener.
func (w *Window) AddEventListener(t EventType, fn Listener) (remove func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	w.listeners[t] = append(w.listeners[t], registration{id: id, fn: fn})
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.listeners[t] = slices.DeleteFunc(w.listeners[t], func(r registration) bool { return r.id == id })
		if len(w.listeners[t]) == 0 {
			delete(w.listeners, t)
		}
	}
}

// ListenerCount returns the number of active listeners across all types.
func (w *Window) ListenerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, ls := range w.listeners {
		n += len(ls)
	}
	return n
}

// Dispatch delivers ev to every listener registered for its type, in
// registration order. A load event marks the snapshot Loaded before any
// listener runs.
func (w *Window) Dispatch(ev Event) {
	if ev.Type == EventLoad {
		w.Update(func(s *Snapshot) { s.Loaded = true })
	}

	w.mu.RLock()
	ls := make([]Listener, 0, len(w.listeners[ev.Type]))
	for _, r := range w.listeners[ev.Type] {
		ls = append(ls, r.fn)
	}
	w.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

// SetHidden updates page visibility and dispatches visibilitychange.
func (w *Window) SetHidden(hidden bool) {
	w.Update(func(s *Snapshot) { s.Hidden = hidden })
	w.Dispatch(Event{Type: EventVisibilityChange})
}
