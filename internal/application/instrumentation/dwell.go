package instrumentation

import "time"

// OnVisibilityChange records the visible interval when the page is hidden and
// hands the queue to the unload-safe path. Becoming visible restarts the
// interval.
func (p *Page) OnVisibilityChange(hidden bool) {
	if !hidden {
		p.mu.Lock()
		if !p.visible && !p.unloaded {
			p.visible = true
			p.dwellOrigin = p.clock.Now()
		}
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return
	}
	p.visible = false
	path, elapsed := p.path, p.clock.Now().Sub(p.dwellOrigin)
	p.mu.Unlock()

	p.handOff(p.sources.Time, path, elapsed)
}

// OnUnload records the final visible interval, if any, and flushes through
// the unload-safe path.
func (p *Page) OnUnload() {
	p.mu.Lock()
	if p.unloaded {
		p.mu.Unlock()
		return
	}
	p.unloaded = true
	wasVisible := p.visible
	p.visible = false
	path, elapsed := p.path, p.clock.Now().Sub(p.dwellOrigin)
	p.mu.Unlock()

	p.handOff(p.sources.Time && wasVisible, path, elapsed)
}

// handOff drains the queue through the unload-safe path, recording the dwell
// interval first when asked so that it travels in the same drain.
func (p *Page) handOff(recordDwell bool, path string, elapsed time.Duration) {
	if recordDwell {
		p.recorder.UnloadWithDwell(path, elapsed)
		return
	}
	p.recorder.FlushUnload()
}
