package telemetry

import (
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/oklog/ulid/v2"
)

// SessionStart records the device context of a newly created session.
func (t *Tracker) SessionStart() {
	if t.disabled {
		return
	}
	t.record(events.Event{
		Type:           events.TypeSessionStart,
		Path:           t.session.LandingPath(),
		Referrer:       t.device.Referrer,
		DeviceType:     t.device.DeviceType,
		Browser:        t.device.Browser,
		OS:             t.device.OS,
		ReferrerSource: t.device.ReferrerSource,
		UserAgent:      t.device.UserAgent,
		LandingPath:    t.session.LandingPath(),
	})
}

func (t *Tracker) Pageview(path, title string) {
	t.record(events.Event{
		Type:     events.TypePageview,
		Path:     path,
		Title:    title,
		Referrer: t.device.Referrer,
	})
}

func (t *Tracker) Click(path string, element events.Element) {
	t.record(events.Event{
		Type:    events.TypeClick,
		Path:    path,
		Element: &element,
	})
}

// Scroll records a scroll-depth milestone, clamped to 0..100.
func (t *Tracker) Scroll(path string, depth int) {
	depth = min(max(depth, 0), 100)
	t.record(events.Event{
		Type:        events.TypeScroll,
		Path:        path,
		ScrollDepth: &depth,
	})
}

// TimeSpent records one visible dwell interval. Intervals for the same
// pageview are summed downstream.
func (t *Tracker) TimeSpent(path string, duration time.Duration) {
	ms := max(duration.Milliseconds(), 0)
	t.record(events.Event{
		Type:       events.TypeTimeSpent,
		Path:       path,
		DurationMS: &ms,
	})
}

func (t *Tracker) FormSubmit(path string, form events.Form) {
	t.record(events.Event{
		Type: events.TypeFormSubmit,
		Path: path,
		Form: &form,
	})
}

func (t *Tracker) CTA(path, name string, element events.Element) {
	t.record(events.Event{
		Type:    events.TypeCTAClick,
		Path:    path,
		CTAName: name,
		Element: &element,
	})
}

// Custom records an application-named event. An empty name records a
// generic "custom" event.
func (t *Tracker) Custom(name, path string, properties map[string]any) {
	eventType := events.EventType(name)
	if name == "" {
		eventType = events.TypeCustom
	}
	t.record(events.Event{
		Type:       eventType,
		Path:       path,
		Properties: properties,
	})
}

// record stamps e, enqueues it and triggers a threshold flush. It never
// blocks on delivery.
func (t *Tracker) record(e events.Event) {
	if t.disabled {
		return
	}

	now := t.clock.Now().UTC()
	e.ID = t.newEventID(now)
	e.SessionID = t.session.ID()
	e.UserID = t.session.UserID()
	e.Timestamp = now

	size := t.queue.Enqueue(e)
	t.logger.Telemetry().Debug("Event recorded", "eventType", e.Type, "path", e.Path, "queued", size)

	if size >= t.cfg.BatchSize {
		t.triggerFlush("threshold")
	}
}

func (t *Tracker) newEventID(now time.Time) string {
	t.entropyMu.Lock()
	defer t.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), t.entropy).String()
}
