package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/sessionstore"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/security"
)

const page = `<html><head><title>TractStack</title></head><body>
<a id="docs" href="/docs">Read the docs</a>
<button id="join" data-track="cta" data-cta="join">Join</button>
<form id="lead" method="post" action="/leads"><button id="send">Send</button></form>
</body></html>`

type collectingSender struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *collectingSender) Send(_ context.Context, payload []byte) error {
	var batch events.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch.Events...)
	return nil
}

func (s *collectingSender) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []events.EventType
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

func newTracker(t *testing.T, scenario *Scenario, sender telemetry.Sender) *telemetry.Tracker {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.BatchSize = 100
	cfg.TrackClicks, cfg.TrackScroll, cfg.TrackTime, cfg.TrackForms = true, true, true, true
	cfg.RespectDoNotTrack = true

	tracker, err := telemetry.New(telemetry.Options{
		Config:      cfg,
		Store:       sessionstore.NewMemoryStore(),
		Sender:      sender,
		Environment: scenario.Environment(),
		LandingPath: scenario.LandingPath,
		Clock:       clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return tracker
}

func TestRunScenario(t *testing.T) {
	token, err := security.GenerateSessionToken("lead-9", "secret", time.Hour)
	require.NoError(t, err)

	scenario, err := ParseScenario([]byte(`
name: signup journey
host: tractstack.com
referrer: https://www.reddit.com/r/golang/
user_agent: Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 Edg/124.0
steps:
  - action: scroll
    percent: 60
  - action: click
    target: docs
  - action: wait
    duration: 20s
  - action: navigate
    path: /pricing
    title: Pricing
  - action: click
    target: join
  - action: identify
    token: ` + token + `
  - action: submit
    target: send
  - action: custom
    name: plan_selected
    properties:
      plan: pro
  - action: hide
`))
	require.NoError(t, err)
	scenario.HTML = page

	sender := &collectingSender{}
	tracker := newTracker(t, scenario, sender)
	runner, err := NewRunner(scenario, tracker, "secret")
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))

	assert.Equal(t, []events.EventType{
		events.TypeSessionStart,
		events.TypePageview,
		events.TypeScroll,
		events.TypeClick,
		events.TypePageview,
		events.TypeCTAClick,
		events.TypeFormSubmit,
		"plan_selected",
		events.TypeTimeSpent,
	}, sender.types())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "edge", sender.events[0].Browser)
	assert.Equal(t, "social", sender.events[0].ReferrerSource)
	assert.Equal(t, "TractStack", sender.events[1].Title)
	assert.Equal(t, 50, *sender.events[2].ScrollDepth)
	assert.Equal(t, "join", sender.events[5].CTAName)
	assert.Empty(t, sender.events[5].UserID)
	assert.Equal(t, "lead-9", sender.events[6].UserID)
	assert.Equal(t, "/pricing", sender.events[8].Path)
	assert.Equal(t, int64(0), *sender.events[8].DurationMS, "dwell restarts on navigation")
}

func TestRunScenarioMissingElement(t *testing.T) {
	scenario, err := ParseScenario([]byte("steps:\n  - action: click\n    target: nowhere\n"))
	require.NoError(t, err)
	scenario.HTML = page

	runner, err := NewRunner(scenario, newTracker(t, scenario, &collectingSender{}), "")
	require.NoError(t, err)
	assert.ErrorContains(t, runner.Run(context.Background()), "nowhere")
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown action", "steps:\n  - action: teleport\n"},
		{"navigate without path", "steps:\n  - action: navigate\n"},
		{"click without target", "steps:\n  - action: click\n"},
		{"wait without duration", "steps:\n  - action: wait\n"},
		{"identify without user", "steps:\n  - action: identify\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioResolvesPageFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(page), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario.yaml"), []byte("page: page.html\nsteps:\n  - action: unload\n"), 0644))

	scenario, err := LoadScenario(filepath.Join(dir, "scenario.yaml"))
	require.NoError(t, err)
	assert.Equal(t, page, scenario.HTML)
	assert.Equal(t, "/", scenario.LandingPath)
	assert.Equal(t, 900.0, scenario.ViewportHeight)
	assert.Equal(t, 3600.0, scenario.DocumentHeight)
}
