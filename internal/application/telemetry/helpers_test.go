package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/device"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
)

var errNetwork = errors.New("connection refused")

type mapStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newMapStore() *mapStore { return &mapStore{values: map[string]string{}} }

func (s *mapStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *mapStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

// stubSender records accepted batches. failWith decides the outcome of the
// nth call (1-based); nil accepts.
type stubSender struct {
	mu       sync.Mutex
	calls    int
	batches  []events.Batch
	failWith func(call int) error
}

func (s *stubSender) Send(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		if err := s.failWith(s.calls); err != nil {
			return err
		}
	}
	var batch events.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *stubSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSender) Batches() []events.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Batch(nil), s.batches...)
}

func (s *stubSender) Delivered() []events.Event {
	var delivered []events.Event
	for _, batch := range s.Batches() {
		delivered = append(delivered, batch.Events...)
	}
	return delivered
}

type stubBeacon struct {
	mu       sync.Mutex
	accept   bool
	payloads []events.Batch
}

func (b *stubBeacon) SendBeacon(payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.accept {
		return false
	}
	var batch events.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return false
	}
	b.payloads = append(b.payloads, batch)
	return true
}

func testConfig() Config {
	return Config{
		BatchSize:         5,
		FlushInterval:     10 * time.Second,
		BackoffInitial:    2 * time.Second,
		BackoffMax:        2 * time.Minute,
		TrackClicks:       true,
		TrackScroll:       true,
		TrackTime:         true,
		TrackForms:        true,
		RespectDoNotTrack: true,
		SessionStorageKey: "sid",
	}
}

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type trackerFixture struct {
	tracker *Tracker
	sender  *stubSender
	beacon  *stubBeacon
	store   *mapStore
	clock   *clock.FakeClock
}

// newFixture builds a tracker over an existing session so no session_start
// event is queued.
func newFixture(t *testing.T, cfg Config) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		sender: &stubSender{},
		beacon: &stubBeacon{accept: true},
		store:  newMapStore(),
		clock:  clock.Fake(testEpoch),
	}
	f.store.values[cfg.SessionStorageKey] = "existing-session"

	tracker, err := New(Options{
		Config: cfg,
		Store:  f.store,
		Sender: f.sender,
		Beacon: f.beacon,
		Environment: device.Environment{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Host:      "tractstack.com",
		},
		LandingPath: "/",
		Clock:       f.clock,
		Logger:      logging.NewNopLogger(),
	})
	require.NoError(t, err)
	f.tracker = tracker
	return f
}

func (f *trackerFixture) settle() {
	f.tracker.flights.Wait()
}

func eventIDs(list []events.Event) []string {
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids
}
