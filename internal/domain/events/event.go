// Package events provides the telemetry event model shared by the pipeline
// and the collector wire contract.
package events

import "time"

// EventType names the kind of observation an Event records. Values outside the
// built-in set are custom-named events.
type EventType string

const (
	TypeSessionStart EventType = "session_start"
	TypePageview     EventType = "pageview"
	TypeClick        EventType = "click"
	TypeScroll       EventType = "scroll"
	TypeTimeSpent    EventType = "time_spent"
	TypeFormSubmit   EventType = "form_submit"
	TypeCTAClick     EventType = "cta_click"
	TypeCustom       EventType = "custom"
)

var builtinTypes = map[EventType]bool{
	TypeSessionStart: true,
	TypePageview:     true,
	TypeClick:        true,
	TypeScroll:       true,
	TypeTimeSpent:    true,
	TypeFormSubmit:   true,
	TypeCTAClick:     true,
}

// IsBuiltin reports whether t is one of the pipeline's own event types.
func (t EventType) IsBuiltin() bool {
	return builtinTypes[t]
}

// Element describes the interactive element a click landed on.
type Element struct {
	Tag  string `json:"tag"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
	Role string `json:"role,omitempty"`
}

// Form describes a submitted form.
type Form struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Action string `json:"action,omitempty"`
	Method string `json:"method,omitempty"`
}

// Event is one timestamped observation. Timestamp is the capture time, never
// the send time, so batching delay does not distort ordering.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`

	// pageview
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	// click, cta_click
	Element *Element `json:"element,omitempty"`
	CTAName string   `json:"cta_name,omitempty"`

	// scroll
	ScrollDepth *int `json:"scroll_depth,omitempty"`

	// time_spent
	DurationMS *int64 `json:"duration_ms,omitempty"`

	// form_submit
	Form *Form `json:"form,omitempty"`

	// session_start
	DeviceType     string `json:"device_type,omitempty"`
	Browser        string `json:"browser,omitempty"`
	OS             string `json:"os,omitempty"`
	ReferrerSource string `json:"referrer_source,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	LandingPath    string `json:"landing_path,omitempty"`

	// custom
	Properties map[string]any `json:"properties,omitempty"`
}

// Batch is the body posted to the collector. Events keep their creation order.
type Batch struct {
	Events        []Event   `json:"events"`
	DroppedEvents uint64    `json:"dropped_events,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
}

// Ack is the optional acknowledgement body returned by the collector.
type Ack struct {
	Accepted int `json:"accepted"`
}
