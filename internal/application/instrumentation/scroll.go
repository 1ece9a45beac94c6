package instrumentation

import (
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
)

var milestones = []int{25, 50, 75, 100}

// FrameInterval approximates one display refresh at 60 Hz.
const FrameInterval = 16 * time.Millisecond

// FrameScheduler runs a callback on the next animation frame.
type FrameScheduler interface {
	RequestFrame(fn func())
}

// ClockFrames emulates animation frames with clock timers.
type ClockFrames struct {
	clock clock.Clock
}

func NewClockFrames(c clock.Clock) *ClockFrames {
	return &ClockFrames{clock: c}
}

func (f *ClockFrames) RequestFrame(fn func()) {
	f.clock.AfterFunc(FrameInterval, fn)
}

// ScrollPosition is one scroll signal in document pixels.
type ScrollPosition struct {
	ScrollTop      float64
	ViewportHeight float64
	DocumentHeight float64
}

// Depth returns the scrolled share of the document as a percentage in 0..100.
// A document that fits in the viewport is fully seen.
func (s ScrollPosition) Depth() float64 {
	scrollable := s.DocumentHeight - s.ViewportHeight
	if scrollable <= 0 {
		return 100
	}
	depth := s.ScrollTop / scrollable * 100
	return min(max(depth, 0), 100)
}

// OnScroll coalesces scroll signals so that only the latest position of each
// frame is evaluated.
func (p *Page) OnScroll(pos ScrollPosition) {
	if !p.sources.Scroll {
		return
	}
	p.mu.Lock()
	p.pendingScroll = &pos
	if p.frameRequested {
		p.mu.Unlock()
		return
	}
	p.frameRequested = true
	p.mu.Unlock()

	p.frames.RequestFrame(p.evaluateScroll)
}

// evaluateScroll emits at most one milestone: the highest one reached that is
// above the watermark.
func (p *Page) evaluateScroll() {
	p.mu.Lock()
	p.frameRequested = false
	pos := p.pendingScroll
	p.pendingScroll = nil
	if pos == nil {
		p.mu.Unlock()
		return
	}

	depth := pos.Depth()
	reached := 0
	for _, milestone := range milestones {
		if float64(milestone) <= depth && milestone > p.watermark {
			reached = milestone
		}
	}
	if reached == 0 {
		p.mu.Unlock()
		return
	}
	p.watermark = reached
	path := p.path
	p.mu.Unlock()

	p.recorder.Scroll(path, reached)
}

// Watermark returns the highest milestone reported for the current page view.
func (p *Page) Watermark() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}
