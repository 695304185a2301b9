// Package loop provides the tracker's single execution context.
//
// Every mutation of tracker state runs as a task on one goroutine, in the
// order tasks were posted. DOM listeners, timers and network completions
// never touch state directly; they Post a closure. Post never blocks.
package loop

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Loop runs posted tasks one at a time.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	started bool
	stopped bool

	wake   chan struct{}
	done   chan struct{}
	clock  clockwork.Clock
	logger *slog.Logger

	timers sync.WaitGroup
	quit   chan struct{}
}

// New creates a stopped loop. Call Start to begin running tasks.
func New(clock clockwork.Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		clock:  clock,
		logger: logger,
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	go l.run()
}

// Post schedules fn to run on the loop. It reports false once the loop has
// been stopped, in which case fn never runs.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish. It must not be used
// from inside a loop task. It reports false when the loop is stopped.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Stop cancels timers, runs the tasks already posted and stops the loop.
// It blocks until the loop goroutine has exited, so it must not be called
// from inside a loop task.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	if !l.started {
		l.started = true
		go l.run()
	}
	l.mu.Unlock()

	close(l.quit)
	l.timers.Wait()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		<-l.wake

		for {
			l.mu.Lock()
			tasks := l.pending
			l.pending = nil
			stopped := l.stopped
			l.mu.Unlock()

			if len(tasks) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, task := range tasks {
				l.exec(task)
			}
		}
	}
}

// exec runs one task; a panicking task is logged and dropped.
func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Every posts fn to the loop every d until the loop stops or the returned
// cancel function is called.
func (l *Loop) Every(d time.Duration, fn func()) (cancel func()) {
	if !l.addTimer() {
		return func() {}
	}
	ticker := l.clock.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer l.timers.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				l.Post(fn)
			case <-stop:
				return
			case <-l.quit:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// After posts fn to the loop once d has elapsed, unless cancelled first.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	if !l.addTimer() {
		return func() {}
	}
	timer := l.clock.NewTimer(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer l.timers.Done()
		select {
		case <-timer.Chan():
			l.Post(fn)
		case <-stop:
			timer.Stop()
		case <-l.quit:
			timer.Stop()
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// addTimer registers a timer goroutine unless the loop is stopping.
func (l *Loop) addTimer() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.timers.Add(1)
	return true
}

// Clock returns the loop's clock.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}
