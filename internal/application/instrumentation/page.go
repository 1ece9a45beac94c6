// Package instrumentation provides the passive page listeners that feed the
// telemetry recorder: clicks, scroll depth, dwell time and form submissions.
package instrumentation

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
)

// Recorder is the surface of telemetry.Tracker the listeners call into.
type Recorder interface {
	Pageview(path, title string)
	Click(path string, element events.Element)
	Scroll(path string, depth int)
	TimeSpent(path string, duration time.Duration)
	FormSubmit(path string, form events.Form)
	CTA(path, name string, element events.Element)
	FlushUnload()
	UnloadWithDwell(path string, duration time.Duration)
}

// Sources switches individual listeners on or off.
type Sources struct {
	Clicks bool
	Scroll bool
	Time   bool
	Forms  bool
}

// SourcesFromConfig reads the per-source switches of a tracker config.
func SourcesFromConfig(cfg telemetry.Config) Sources {
	return Sources{
		Clicks: cfg.TrackClicks,
		Scroll: cfg.TrackScroll,
		Time:   cfg.TrackTime,
		Forms:  cfg.TrackForms,
	}
}

// PageOptions configures a Page. A nil Clock uses the real clock and nil
// Frames schedules scroll evaluation on that clock.
type PageOptions struct {
	Sources Sources
	Clock   clock.Clock
	Frames  FrameScheduler
	Logger  *logging.ChanneledLogger
}

// Page holds the per-page-view state of the listeners: current path, scroll
// watermark and dwell origin.
type Page struct {
	recorder Recorder
	sources  Sources
	clock    clock.Clock
	frames   FrameScheduler
	logger   *logging.ChanneledLogger

	mu          sync.Mutex
	path        string
	watermark   int
	visible     bool
	dwellOrigin time.Time
	unloaded    bool

	pendingScroll  *ScrollPosition
	frameRequested bool
}

func NewPage(recorder Recorder, opts PageOptions) *Page {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Frames == nil {
		opts.Frames = NewClockFrames(opts.Clock)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Page{
		recorder: recorder,
		sources:  opts.Sources,
		clock:    opts.Clock,
		frames:   opts.Frames,
		logger:   opts.Logger,
	}
}

// Start records the initial pageview.
func (p *Page) Start(path, title string) {
	p.mu.Lock()
	p.resetLocked(path)
	p.mu.Unlock()

	p.recorder.Pageview(path, title)
}

// Navigate records a pageview for a route change. Repeated notifications for
// the current path are ignored.
func (p *Page) Navigate(path, title string) {
	p.mu.Lock()
	if path == p.path {
		p.mu.Unlock()
		p.logger.Instrumentation().Debug("Ignoring navigation to current path", "path", path)
		return
	}
	p.resetLocked(path)
	p.mu.Unlock()

	p.recorder.Pageview(path, title)
}

func (p *Page) resetLocked(path string) {
	p.path = path
	p.watermark = 0
	p.pendingScroll = nil
	p.visible = true
	p.unloaded = false
	p.dwellOrigin = p.clock.Now()
}

// Path returns the current page path.
func (p *Page) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}
