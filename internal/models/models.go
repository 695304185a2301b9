package models

import "time"

// EventType is the kind of an event record.
type EventType string

const (
	EventPageView    EventType = "pageview"
	EventClick       EventType = "click"
	EventFormSubmit  EventType = "form_submit"
	EventScrollDepth EventType = "scroll_depth"
	EventPerformance EventType = "performance"
	EventHeartbeat   EventType = "heartbeat"
	EventCustom      EventType = "custom"
	EventIdentify    EventType = "identify"
)

// EventTypes lists every kind the ingestion endpoint accepts.
var EventTypes = []EventType{
	EventPageView, EventClick, EventFormSubmit, EventScrollDepth,
	EventPerformance, EventHeartbeat, EventCustom, EventIdentify,
}

// Valid reports whether t is one of EventTypes.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Context holds the enrichment fields attached to every record.
type Context struct {
	PageURL        string  `json:"page_url"`
	PageTitle      string  `json:"page_title"`
	PagePath       string  `json:"page_path"`
	ReferrerURL    *string `json:"referrer_url"`    // nullable
	ReferrerDomain *string `json:"referrer_domain"` // nullable
	TrafficSource  string  `json:"traffic_source"`  // internal|organic|social|referral|direct|unknown

	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMTerm     *string `json:"utm_term"`
	UTMContent  *string `json:"utm_content"`

	UserAgent      string `json:"user_agent"`
	DeviceType     string `json:"device_type"` // mobile|tablet|desktop|bot|unknown
	BrowserName    string `json:"browser_name"`
	BrowserVersion string `json:"browser_version"`
	OSName         string `json:"os_name"`
	OSVersion      string `json:"os_version"`

	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	Timezone       string `json:"timezone"`
	Language       string `json:"language"`
}

// Event is one self-contained record as it travels on the wire. Context is
// embedded so the JSON object stays flat.
type Event struct {
	TrackingID string    `json:"tracking_id"`
	VisitorID  string    `json:"visitor_id"`
	SessionID  string    `json:"session_id"`
	Timestamp  string    `json:"timestamp"`
	EventType  EventType `json:"event_type"`

	EventName     *string  `json:"event_name,omitempty"`
	EventCategory *string  `json:"event_category,omitempty"`
	EventAction   *string  `json:"event_action,omitempty"`
	EventLabel    *string  `json:"event_label,omitempty"`
	EventValue    *float64 `json:"event_value,omitempty"`

	Properties map[string]any `json:"properties"` // arbitrary JSON

	Context
}

// Batch is the request body sent to the ingestion endpoint.
type Batch struct {
	Events []Event `json:"events"`
}

// Identity carries the identifiers stamped on each record.
type Identity struct {
	TrackingID string
	VisitorID  string
	SessionID  string
}

// FormatTimestamp renders t the way browsers render Date.toISOString:
// UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseTimestamp parses an ISO-8601 timestamp as produced by FormatTimestamp
// or any RFC 3339 variant.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func str(s string) *string { return &s }
