package observer

import "github.com/visiora/visiora-agent/internal/models"

// heartbeat emits a liveness record while the visitor is active. An idle
// visitor produces nothing, so heartbeats never keep a session alive on
// their own.
func (o *Observers) heartbeat() {
	now := o.sched.Clock().Now()
	if now.Sub(o.lastActivity) >= o.opts.SessionTimeout {
		return
	}
	start := o.session.SessionStart()
	o.sink.Emit(models.Heartbeat{SessionDuration: now.Sub(start)})
}
