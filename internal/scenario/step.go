package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/visiora/visiora-agent/pkg/dom"
)

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Click    *ClickStep    `yaml:"click"`
	Submit   *SubmitStep   `yaml:"submit"`
	Scroll   *int          `yaml:"scroll"` // new scrollY
	Activity dom.EventType `yaml:"activity"`
	Track    *TrackStep    `yaml:"track"`
	Identify *IdentifyStep `yaml:"identify"`
	Navigate *NavigateStep `yaml:"navigate"`
	Wait     time.Duration `yaml:"wait"`
	Hide     bool          `yaml:"hide"`
	Show     bool          `yaml:"show"`
	Load     bool          `yaml:"load"`
	Unload   bool          `yaml:"unload"`
	Flush    bool          `yaml:"flush"`
}

type ClickStep struct {
	Tag  string `yaml:"tag"` // a (default) or button
	Href string `yaml:"href"`
	Text string `yaml:"text"`
	ID   string `yaml:"id"`
}

type SubmitStep struct {
	Name   string `yaml:"name"`
	ID     string `yaml:"id"`
	Action string `yaml:"action"`
	Method string `yaml:"method"`
}

type TrackStep struct {
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties"`
}

type IdentifyStep struct {
	UserID string         `yaml:"user_id"`
	Traits map[string]any `yaml:"traits"`
}

type NavigateStep struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

var activityTypes = map[dom.EventType]bool{
	dom.EventMouseMove:  true,
	dom.EventMouseDown:  true,
	dom.EventKeyDown:    true,
	dom.EventTouchStart: true,
}

// Kind names the action the step performs.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var kinds []string
	add := func(set bool, kind string) {
		if set {
			kinds = append(kinds, kind)
		}
	}
	add(s.Click != nil, "click")
	add(s.Submit != nil, "submit")
	add(s.Scroll != nil, "scroll")
	add(s.Activity != "", "activity")
	add(s.Track != nil, "track")
	add(s.Identify != nil, "identify")
	add(s.Navigate != nil, "navigate")
	add(s.Wait > 0, "wait")
	add(s.Hide, "hide")
	add(s.Show, "show")
	add(s.Load, "load")
	add(s.Unload, "unload")
	add(s.Flush, "flush")
	return kinds
}

// Validate checks the step is well-formed.
func (s Step) Validate() error {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return fmt.Errorf("%w, got %v", ErrInvalidStep, kinds)
	}
	switch {
	case s.Activity != "" && !activityTypes[s.Activity]:
		return fmt.Errorf("unknown activity %q", s.Activity)
	case s.Track != nil && s.Track.Name == "":
		return fmt.Errorf("track step needs a name")
	case s.Identify != nil && s.Identify.UserID == "":
		return fmt.Errorf("identify step needs a user_id")
	case s.Navigate != nil && s.Navigate.URL == "":
		return fmt.Errorf("navigate step needs a url")
	case s.Click != nil && s.Click.Tag != "" && s.Click.Tag != "a" && s.Click.Tag != "button":
		return fmt.Errorf("click tag must be a or button, got %q", s.Click.Tag)
	}
	return nil
}

// Agent is the part of the tracker the runner drives directly.
// *tracker.Agent implements it.
type Agent interface {
	Track(name string, props map[string]any)
	Identify(userID string, traits map[string]any)
	PageView()
	Flush()
}

// Runner dispatches steps to a window and an agent.
type Runner struct {
	win   *dom.Window
	agent Agent
	sleep func(ctx context.Context, d time.Duration) error

	// OnStep, when set, is called before each step runs.
	OnStep func(i int, s Step)
}

// NewRunner creates a runner that waits on the wall clock.
func NewRunner(win *dom.Window, agent Agent) *Runner {
	return &Runner{win: win, agent: agent, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes steps in order. It stops early when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.OnStep != nil {
			r.OnStep(i, step)
		}
		if err := r.exec(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Kind(), err)
		}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, s Step) error {
	switch {
	case s.Click != nil:
		tag := s.Click.Tag
		if tag == "" {
			tag = "a"
		}
		el := dom.NewElement(tag, map[string]string{"href": s.Click.Href, "id": s.Click.ID})
		el.Text = s.Click.Text
		// Clicks land on an inner node and bubble up.
		inner := el.Append(dom.NewElement("span", nil))
		r.win.Dispatch(dom.Event{Type: dom.EventClick, Target: inner})

	case s.Submit != nil:
		form := dom.NewElement("form", map[string]string{
			"name":   s.Submit.Name,
			"id":     s.Submit.ID,
			"action": s.Submit.Action,
			"method": s.Submit.Method,
		})
		r.win.Dispatch(dom.Event{Type: dom.EventSubmit, Target: form})

	case s.Scroll != nil:
		y := *s.Scroll
		r.win.Update(func(snap *dom.Snapshot) { snap.ScrollY = y })
		r.win.Dispatch(dom.Event{Type: dom.EventScroll})

	case s.Activity != "":
		r.win.Dispatch(dom.Event{Type: s.Activity})

	case s.Track != nil:
		r.agent.Track(s.Track.Name, s.Track.Properties)

	case s.Identify != nil:
		r.agent.Identify(s.Identify.UserID, s.Identify.Traits)

	case s.Navigate != nil:
		r.win.Navigate(s.Navigate.URL, s.Navigate.Title)
		r.agent.PageView()

	case s.Wait > 0:
		return r.sleep(ctx, s.Wait)

	case s.Hide:
		r.win.SetHidden(true)

	case s.Show:
		r.win.SetHidden(false)

	case s.Load:
		r.win.Dispatch(dom.Event{Type: dom.EventLoad})

	case s.Unload:
		r.win.Dispatch(dom.Event{Type: dom.EventPageHide})

	case s.Flush:
		r.agent.Flush()
	}
	return nil
}
