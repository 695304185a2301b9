package observer

import (
	"github.com/spaolacci/murmur3"

	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// sampleBuckets is the resolution of the sampling rate.
const sampleBuckets = 10000

// Sampled reports whether performance timing is collected for sessionID.
// The decision is a pure function of the id, so a session is either always
// or never sampled.
func Sampled(sessionID string, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	bucket := murmur3.Sum32([]byte(sessionID)) % sampleBuckets
	return float64(bucket) < rate*sampleBuckets
}

// watchPerformance reports timing once the page has loaded.
func (o *Observers) watchPerformance() {
	if o.win.Snapshot().Loaded {
		o.sched.Post(o.reportPerformance)
		return
	}
	o.listen(dom.EventLoad, func(dom.Event) { o.reportPerformance() })
}

func (o *Observers) reportPerformance() {
	if o.perfDone {
		return
	}
	o.perfDone = true

	if !Sampled(o.session.SessionID(), o.opts.PerformanceSampleRate) {
		return
	}
	timing := o.win.Snapshot().Timing
	if timing == nil {
		return
	}
	o.sink.Emit(TimingDeltas(*timing))
}

// TimingDeltas derives the reported durations from navigation timing marks.
// Marks that were never reached yield zero rather than a negative duration.
func TimingDeltas(t dom.NavigationTiming) models.Performance {
	return models.Performance{
		DNS:      delta(t.DomainLookupStart, t.DomainLookupEnd),
		Connect:  delta(t.ConnectStart, t.ConnectEnd),
		Response: delta(t.RequestStart, t.ResponseEnd),
		DOMLoad:  delta(t.NavigationStart, t.DOMContentLoadedEventEnd),
		PageLoad: delta(t.NavigationStart, t.LoadEventEnd),
	}
}

func delta(start, end float64) float64 {
	if end <= 0 || end < start {
		return 0
	}
	return end - start
}
