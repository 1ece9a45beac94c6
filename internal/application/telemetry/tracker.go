package telemetry

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/clock"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/device"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/oklog/ulid/v2"
)

// Options are the collaborators a host hands to New.
type Options struct {
	Config      Config
	Store       KeyValueStore
	Sender      Sender
	Beacon      BeaconSender // optional; unload flushes fall back to Sender
	Environment device.Environment
	LandingPath string
	Clock       clock.Clock
	Logger      *logging.ChanneledLogger
}

// Tracker is the pipeline for one page lifecycle. The host constructs it
// once and passes it to its instrumentation sources.
type Tracker struct {
	cfg    Config
	clock  clock.Clock
	logger *logging.ChanneledLogger
	sender Sender
	beacon BeaconSender

	sessions *SessionManager
	session  *session.Session
	device   session.DeviceContext
	disabled bool

	queue *Queue

	entropyMu sync.Mutex
	entropy   io.Reader

	flushMu     sync.Mutex
	inFlight    bool
	failures    int
	nextAttempt time.Time

	delivered atomic.Uint64
	beaconed  atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64

	flights sync.WaitGroup

	// unloading is non-zero while the unload-safe path drains the queue.
	unloading atomic.Int32

	loopMu  sync.Mutex
	ticker  *clock.Ticker
	stop    chan struct{}
	loopEnd chan struct{}
}

// Stats is a snapshot of the pipeline for operator visibility.
type Stats struct {
	SessionID           string
	Disabled            bool
	Degraded            bool
	Queued              int
	DeliveredBatches    uint64
	BeaconedBatches     uint64
	FailedBatches       uint64
	RejectedBatches     uint64
	DroppedEvents       uint64
	ConsecutiveFailures int
	NextAttempt         time.Time
}

// New builds a tracker, resolving the device context and the session. When
// Do-Not-Track is honoured and signalled the tracker is inert.
func New(opts Options) (*Tracker, error) {
	if opts.Sender == nil {
		return nil, errors.New("telemetry: a Sender is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	cfg := opts.Config.normalize()

	if cfg.Debug {
		opts.Logger.EnableDebug(logging.PipelineChannels...)
	}

	t := &Tracker{
		cfg:     cfg,
		clock:   opts.Clock,
		logger:  opts.Logger,
		sender:  opts.Sender,
		beacon:  opts.Beacon,
		device:  device.Resolve(opts.Environment),
		queue:   NewQueue(cfg.MaxQueueSize),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}

	if cfg.RespectDoNotTrack && t.device.DoNotTrack {
		t.disabled = true
		t.logger.Telemetry().Info("Do-Not-Track signalled, telemetry disabled")
		return t, nil
	}

	t.sessions = NewSessionManager(opts.Store, cfg.SessionStorageKey, opts.Logger)
	t.session = session.NewSession(t.sessions.GetOrCreateSessionID(), t.device, opts.LandingPath, t.clock.Now())

	t.logger.WithSession(logging.ChannelTelemetry, t.session.ID()).Info("Telemetry pipeline initialized",
		"deviceType", t.device.DeviceType,
		"browser", t.device.Browser,
		"os", t.device.OS,
		"referrerSource", t.device.ReferrerSource,
		"batchSize", cfg.BatchSize,
		"flushInterval", cfg.FlushInterval,
		"degraded", t.sessions.Degraded())

	if t.sessions.IsNew() {
		t.SessionStart()
	}
	return t, nil
}

// Start runs the periodic flush until ctx is done or Shutdown is called.
func (t *Tracker) Start(ctx context.Context) {
	if t.disabled {
		return
	}
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	if t.ticker != nil {
		return
	}

	t.ticker = t.clock.NewTicker(t.cfg.FlushInterval)
	t.stop = make(chan struct{})
	t.loopEnd = make(chan struct{})

	go t.loop(ctx, t.ticker, t.stop, t.loopEnd)
}

func (t *Tracker) loop(ctx context.Context, ticker *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			t.triggerFlush("interval")
		}
	}
}

// Shutdown stops the flush timer, waits for in-flight deliveries and makes a
// final best-effort standard flush of whatever remains.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.loopMu.Lock()
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.stop)
		<-t.loopEnd
		t.ticker = nil
	}
	t.loopMu.Unlock()

	waited := make(chan struct{})
	go func() {
		t.flights.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		t.logger.Shutdown().Warn("Timed out waiting for in-flight telemetry", "queued", t.queue.Len())
		return ctx.Err()
	}

	for t.queue.Len() > 0 {
		batch, dropped := t.queue.Take(t.cfg.MaxBatchEvents)
		if !t.deliver(ctx, batch, dropped) {
			break
		}
	}

	t.logger.Shutdown().Info("Telemetry pipeline stopped",
		"delivered", t.delivered.Load(),
		"remaining", t.queue.Len(),
		"dropped", t.queue.DroppedTotal())
	return nil
}

// Identify binds an authenticated user to the session.
func (t *Tracker) Identify(userID string) {
	if t.disabled {
		return
	}
	t.session.BindUser(userID)
	t.logger.WithSession(logging.ChannelSession, t.session.ID()).Info("User bound to session")
}

// SessionID returns the session identifier, or "" when disabled.
func (t *Tracker) SessionID() string {
	if t.disabled {
		return ""
	}
	return t.session.ID()
}

// Disabled reports whether Do-Not-Track switched the pipeline off.
func (t *Tracker) Disabled() bool { return t.disabled }

func (t *Tracker) Config() Config { return t.cfg }

func (t *Tracker) Device() session.DeviceContext { return t.device }

func (t *Tracker) Logger() *logging.ChanneledLogger { return t.logger }

func (t *Tracker) Clock() clock.Clock { return t.clock }

func (t *Tracker) Stats() Stats {
	t.flushMu.Lock()
	failures, next := t.failures, t.nextAttempt
	t.flushMu.Unlock()

	stats := Stats{
		SessionID:           t.SessionID(),
		Disabled:            t.disabled,
		Queued:              t.queue.Len(),
		DeliveredBatches:    t.delivered.Load(),
		BeaconedBatches:     t.beaconed.Load(),
		FailedBatches:       t.failed.Load(),
		RejectedBatches:     t.rejected.Load(),
		DroppedEvents:       t.queue.DroppedTotal(),
		ConsecutiveFailures: failures,
		NextAttempt:         next,
	}
	if t.sessions != nil {
		stats.Degraded = t.sessions.Degraded()
	}
	return stats
}
