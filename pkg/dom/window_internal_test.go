package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_RemovedListenersAreReleased(t *testing.T) {
	w := NewWindow(Snapshot{}, Capabilities{}, nil, nil)

	var calls int
	keep := w.AddEventListener(EventClick, func(Event) { calls++ })
	for i := 0; i < 100; i++ {
		remove := w.AddEventListener(EventClick, func(Event) { t.Fatal("removed listener ran") })
		remove()
		remove()
	}

	assert.Len(t, w.listeners[EventClick], 1)
	w.Dispatch(Event{Type: EventClick})
	assert.Equal(t, 1, calls)

	keep()
	assert.NotContains(t, w.listeners, EventClick)
	assert.Zero(t, w.ListenerCount())
}
