package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/instrumentation"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/device"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/security"
	"golang.org/x/net/html"
)

// Runner plays a scenario against one tracker and page.
type Runner struct {
	scenario    *Scenario
	doc         *html.Node
	tracker     *telemetry.Tracker
	page        *instrumentation.Page
	clock       clock.Clock
	tokenSecret string
	logger      *logging.ChanneledLogger
}

// Environment returns the host environment the scenario describes.
func (s *Scenario) Environment() device.Environment {
	return device.Environment{
		UserAgent:  s.UserAgent,
		Referrer:   s.Referrer,
		Host:       s.Host,
		DoNotTrack: s.DoNotTrack,
	}
}

// NewRunner parses the scenario's document and builds the page listeners
// around tracker. tokenSecret verifies identify steps that carry a token.
func NewRunner(scenario *Scenario, tracker *telemetry.Tracker, tokenSecret string) (*Runner, error) {
	doc, err := html.Parse(strings.NewReader(scenario.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	page := instrumentation.NewPage(tracker, instrumentation.PageOptions{
		Sources: instrumentation.SourcesFromConfig(tracker.Config()),
		Clock:   tracker.Clock(),
		Logger:  tracker.Logger(),
	})

	return &Runner{
		scenario:    scenario,
		doc:         doc,
		tracker:     tracker,
		page:        page,
		clock:       tracker.Clock(),
		tokenSecret: tokenSecret,
		logger:      tracker.Logger(),
	}, nil
}

// Page exposes the listeners the runner drives.
func (r *Runner) Page() *instrumentation.Page { return r.page }

// Run starts the page at the landing path and plays every step in order.
func (r *Runner) Run(ctx context.Context) error {
	r.page.Start(r.scenario.LandingPath, instrumentation.DocumentTitle(r.doc))

	for i, step := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Instrumentation().Debug("Replaying step", "step", i+1, "action", step.Action)
		if err := r.play(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}
	return nil
}

func (r *Runner) play(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionNavigate:
		title := step.Title
		if title == "" {
			title = instrumentation.DocumentTitle(r.doc)
		}
		r.page.Navigate(step.Path, title)

	case ActionClick, ActionSubmit:
		target := instrumentation.FindByID(r.doc, step.Target)
		if target == nil {
			return fmt.Errorf("element %q not found", step.Target)
		}
		if step.Action == ActionClick {
			r.page.OnClick(target)
		} else {
			r.page.OnSubmit(target)
		}

	case ActionScroll:
		scrollable := r.scenario.DocumentHeight - r.scenario.ViewportHeight
		r.page.OnScroll(instrumentation.ScrollPosition{
			ScrollTop:      scrollable * step.Percent / 100,
			ViewportHeight: r.scenario.ViewportHeight,
			DocumentHeight: r.scenario.DocumentHeight,
		})
		return r.wait(ctx, instrumentation.FrameInterval)

	case ActionHide:
		r.page.OnVisibilityChange(true)

	case ActionShow:
		r.page.OnVisibilityChange(false)

	case ActionWait:
		return r.wait(ctx, step.Duration)

	case ActionIdentify:
		if step.Token != "" {
			if _, err := security.BindFromToken(r.tracker, step.Token, r.tokenSecret); err != nil {
				return err
			}
			return nil
		}
		r.tracker.Identify(step.UserID)

	case ActionCustom:
		r.tracker.Custom(step.Name, r.page.Path(), step.Properties)

	case ActionFlush:
		r.tracker.Flush(ctx)

	case ActionUnload:
		r.page.OnUnload()
	}
	return nil
}

// wait lets d elapse on the runner's clock. A fake clock is advanced instead
// of slept on.
func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if fake, ok := r.clock.(*clock.FakeClock); ok {
		fake.Advance(d)
		return nil
	}

	done := make(chan struct{})
	timer := r.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}
