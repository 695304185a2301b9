package observer

import (
	"math"
	"slices"

	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// scrollState tracks which thresholds have fired on this page instance.
// Markers are never reset, including across SPA navigations.
type scrollState struct {
	thresholds []int
	fired      map[int]bool
	pending    func()
	gen        int
}

func newScrollState(thresholds []int) scrollState {
	t := slices.Clone(thresholds)
	slices.Sort(t)
	return scrollState{thresholds: slices.Compact(t), fired: make(map[int]bool, len(t))}
}

func (s *scrollState) cancel() {
	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
}

// cross marks every unfired threshold at or below percent and returns them
// in ascending order.
func (s *scrollState) cross(percent int) []int {
	var crossed []int
	for _, t := range s.thresholds {
		if t <= percent && !s.fired[t] {
			s.fired[t] = true
			crossed = append(crossed, t)
		}
	}
	return crossed
}

// onScroll restarts the quiet period. Only the last scroll in a burst is
// measured.
func (o *Observers) onScroll() {
	o.scroll.cancel()
	o.scroll.gen++
	gen := o.scroll.gen
	o.scroll.pending = o.sched.After(o.opts.ScrollDebounce, func() {
		// A timer that fired just before being cancelled still posts.
		if gen != o.scroll.gen {
			return
		}
		o.scroll.pending = nil
		o.measureScroll()
	})
}

func (o *Observers) measureScroll() {
	percent, ok := ScrollPercent(o.win.Snapshot())
	if !ok {
		return
	}
	for _, depth := range o.scroll.cross(percent) {
		o.sink.Emit(models.ScrollDepth{Depth: depth})
	}
}

// ScrollPercent computes how far down the document the bottom of the
// viewport is, rounded to the nearest percent. It reports false when the
// document height is unknown.
func ScrollPercent(s dom.Snapshot) (int, bool) {
	if s.DocumentHeight <= 0 {
		return 0, false
	}
	ratio := float64(s.ScrollY+s.Viewport.Height) / float64(s.DocumentHeight)
	return int(math.Round(ratio * 100)), true
}
