package dom

// EventType names a DOM signal.
type EventType string

const (
	EventClick            EventType = "click"
	EventSubmit           EventType = "submit"
	EventScroll           EventType = "scroll"
	EventVisibilityChange EventType = "visibilitychange"
	EventPageHide         EventType = "pagehide"
	EventBeforeUnload     EventType = "beforeunload"
	EventLoad             EventType = "load"
	EventMouseMove        EventType = "mousemove"
	EventMouseDown        EventType = "mousedown"
	EventKeyDown          EventType = "keydown"
	EventTouchStart       EventType = "touchstart"
)

// Event is a signal dispatched by the host. Target is nil for window-level
// signals such as scroll or load.
type Event struct {
	Type   EventType
	Target *Element
}

// Listener receives dispatched events. Listeners must not block.
type Listener func(Event)
