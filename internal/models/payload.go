package models

import (
	"maps"
	"time"
)

// Payload is the event-specific part of a record. The set of
// implementations is closed: one per EventType.
type Payload interface {
	Type() EventType
	apply(e *Event)
}

// Build merges the base context, the identity and p into a record.
// Base fields are written first and the payload second, so on any field both
// set the payload wins.
func Build(base Context, id Identity, at time.Time, p Payload) Event {
	e := Event{
		TrackingID: id.TrackingID,
		VisitorID:  id.VisitorID,
		SessionID:  id.SessionID,
		Timestamp:  FormatTimestamp(at),
		Properties: map[string]any{},
		Context:    base,
	}
	p.apply(&e)
	e.EventType = p.Type()
	return e
}

// PageView records a page being shown. Non-empty fields override the
// ambient page fields, which SPA navigations use.
type PageView struct {
	URL   string
	Title string
	Path  string
}

func (PageView) Type() EventType { return EventPageView }

func (p PageView) apply(e *Event) {
	if p.URL != "" {
		e.PageURL = p.URL
	}
	if p.Title != "" {
		e.PageTitle = p.Title
	}
	if p.Path != "" {
		e.PagePath = p.Path
	}
}

// Click records a click on a link or button.
type Click struct {
	Tag       string
	Href      string
	Text      string
	ElementID string
}

func (Click) Type() EventType { return EventClick }

func (c Click) apply(e *Event) {
	e.EventCategory = str("engagement")
	e.EventAction = str("click")
	if c.Text != "" {
		e.EventLabel = str(c.Text)
	}
	e.Properties["element_tag"] = c.Tag
	e.Properties["element_text"] = c.Text
	if c.Href != "" {
		e.Properties["element_href"] = c.Href
	}
	if c.ElementID != "" {
		e.Properties["element_id"] = c.ElementID
	}
}

// FormSubmit records a form submission.
type FormSubmit struct {
	FormName string
	Action   string
	Method   string
}

func (FormSubmit) Type() EventType { return EventFormSubmit }

func (f FormSubmit) apply(e *Event) {
	e.EventCategory = str("form")
	e.EventAction = str("submit")
	e.EventLabel = str(f.FormName)
	e.Properties["form_name"] = f.FormName
	e.Properties["form_action"] = f.Action
	e.Properties["form_method"] = f.Method
}

// ScrollDepth records the first crossing of a scroll threshold.
type ScrollDepth struct {
	Depth int
}

func (ScrollDepth) Type() EventType { return EventScrollDepth }

func (s ScrollDepth) apply(e *Event) {
	v := float64(s.Depth)
	e.EventCategory = str("engagement")
	e.EventAction = str("scroll")
	e.EventValue = &v
	e.Properties["depth"] = s.Depth
}

// Performance carries navigation timing deltas in milliseconds.
type Performance struct {
	DNS      float64
	Connect  float64
	Response float64
	DOMLoad  float64
	PageLoad float64
}

func (Performance) Type() EventType { return EventPerformance }

func (p Performance) apply(e *Event) {
	v := p.PageLoad
	e.EventValue = &v
	e.Properties["dns_time"] = p.DNS
	e.Properties["connect_time"] = p.Connect
	e.Properties["response_time"] = p.Response
	e.Properties["dom_load_time"] = p.DOMLoad
	e.Properties["page_load_time"] = p.PageLoad
}

// Heartbeat is the periodic liveness record.
type Heartbeat struct {
	SessionDuration time.Duration
}

func (Heartbeat) Type() EventType { return EventHeartbeat }

func (h Heartbeat) apply(e *Event) {
	secs := int64(h.SessionDuration / time.Second)
	v := float64(secs)
	e.EventValue = &v
	e.Properties["session_duration"] = secs
}

// Custom is a record emitted through the public Track call.
type Custom struct {
	Name       string
	Category   string
	Action     string
	Label      string
	Value      *float64
	Properties map[string]any
}

func (Custom) Type() EventType { return EventCustom }

func (c Custom) apply(e *Event) {
	e.EventName = str(c.Name)
	if c.Category != "" {
		e.EventCategory = str(c.Category)
	}
	if c.Action != "" {
		e.EventAction = str(c.Action)
	}
	if c.Label != "" {
		e.EventLabel = str(c.Label)
	}
	if c.Value != nil {
		v := *c.Value
		e.EventValue = &v
	}
	maps.Copy(e.Properties, c.Properties)
}

// Identify ties the visitor to a known user id.
type Identify struct {
	UserID string
	Traits map[string]any
}

func (Identify) Type() EventType { return EventIdentify }

func (i Identify) apply(e *Event) {
	e.EventName = str("identify")
	traits := make(map[string]any, len(i.Traits))
	maps.Copy(traits, i.Traits)
	e.Properties["user_id"] = i.UserID
	e.Properties["traits"] = traits
}
