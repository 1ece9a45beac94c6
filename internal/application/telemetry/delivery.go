package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
)

// triggerFlush dispatches a standard flush unless the unload-safe path owns
// the queue, one is already in flight, the queue is empty, or the backoff
// window is still open.
func (t *Tracker) triggerFlush(reason string) {
	if t.unloading.Load() > 0 {
		t.logger.Delivery().Debug("Flush left to unload path", "reason", reason)
		return
	}
	t.flushMu.Lock()
	if t.inFlight {
		t.flushMu.Unlock()
		t.logger.Delivery().Debug("Flush coalesced into in-flight delivery", "reason", reason)
		return
	}
	if t.queue.Len() == 0 {
		t.flushMu.Unlock()
		return
	}
	if now := t.clock.Now(); now.Before(t.nextAttempt) {
		t.flushMu.Unlock()
		t.logger.Delivery().Debug("Flush deferred by backoff", "reason", reason, "retryIn", t.nextAttempt.Sub(now))
		return
	}
	t.inFlight = true
	t.flights.Add(1)
	t.flushMu.Unlock()

	go func() {
		defer t.flights.Done()
		t.runFlight(reason)
	}()
}

func (t *Tracker) runFlight(reason string) {
	batch, dropped := t.queue.Take(t.cfg.MaxBatchEvents)
	t.logger.Delivery().Debug("Flushing batch", "reason", reason, "events", len(batch))
	ok := t.deliver(context.Background(), batch, dropped)

	t.flushMu.Lock()
	t.inFlight = false
	t.flushMu.Unlock()

	if ok && t.queue.Len() >= t.cfg.BatchSize {
		t.triggerFlush("follow-up")
	}
}

// Flush runs one standard flush on the caller's goroutine, respecting the
// backoff window. It reports whether the queue ended up empty.
func (t *Tracker) Flush(ctx context.Context) bool {
	if t.disabled {
		return true
	}
	t.flushMu.Lock()
	if t.inFlight || t.clock.Now().Before(t.nextAttempt) {
		t.flushMu.Unlock()
		return t.queue.Len() == 0
	}
	t.inFlight = true
	t.flushMu.Unlock()

	for t.queue.Len() > 0 {
		batch, dropped := t.queue.Take(t.cfg.MaxBatchEvents)
		if !t.deliver(ctx, batch, dropped) {
			break
		}
	}

	t.flushMu.Lock()
	t.inFlight = false
	t.flushMu.Unlock()
	return t.queue.Len() == 0
}

// UnloadWithDwell records the closing dwell interval and hands the whole
// queue, that event included, to the unload-safe path. No standard flush is
// started in between.
func (t *Tracker) UnloadWithDwell(path string, duration time.Duration) {
	if t.disabled {
		return
	}
	t.unloading.Add(1)
	defer t.unloading.Add(-1)

	t.TimeSpent(path, duration)
	t.FlushUnload()
}

// FlushUnload drains the queue through the unload-safe primitive, ignoring
// the backoff window. Batches the beacon refuses go through the standard
// path on the calling goroutine. Threshold and interval flushes stand aside
// while it runs.
func (t *Tracker) FlushUnload() {
	if t.disabled {
		return
	}
	t.unloading.Add(1)
	defer t.unloading.Add(-1)

	for {
		batch, dropped := t.queue.Take(t.cfg.MaxBatchEvents)
		if len(batch) == 0 {
			return
		}

		payload, err := encodeBatch(batch, dropped, t.clock.Now())
		if err != nil {
			t.queue.RestoreDropped(dropped)
			t.rejected.Add(1)
			t.logger.Delivery().Error("Dropping unencodable batch", "events", len(batch), "error", err.Error())
			continue
		}

		if t.beacon != nil && t.beacon.SendBeacon(payload) {
			t.beaconed.Add(1)
			t.logger.Delivery().Debug("Batch handed to beacon", "events", len(batch), "bytes", len(payload))
			continue
		}

		t.logger.Delivery().Debug("Beacon unavailable, falling back to standard send", "events", len(batch))
		if !t.deliver(context.Background(), batch, dropped) {
			return
		}
	}
}

// deliver sends batch, reporting the dropped count reserved with it, over the
// standard path. It returns false only when the batch was requeued for a
// later attempt.
func (t *Tracker) deliver(ctx context.Context, batch []events.Event, dropped uint64) bool {
	if len(batch) == 0 {
		t.queue.RestoreDropped(dropped)
		return true
	}

	payload, err := encodeBatch(batch, dropped, t.clock.Now())
	if err != nil {
		t.queue.RestoreDropped(dropped)
		t.rejected.Add(1)
		t.logger.Delivery().Error("Dropping unencodable batch", "events", len(batch), "error", err.Error())
		return true
	}

	start := t.clock.Now()
	err = t.sender.Send(ctx, payload)
	duration := t.clock.Now().Sub(start)

	if err == nil {
		t.delivered.Add(1)
		t.resetBackoff()
		t.logger.Delivery().Info("Batch delivered", "events", len(batch), "droppedReported", dropped, "duration", duration)
		return true
	}

	if !IsRetryable(err) {
		// The events are gone but the evictions are still unreported.
		t.queue.RestoreDropped(dropped)
		t.rejected.Add(1)
		t.resetBackoff()
		t.logger.Delivery().Error("Collector rejected batch, dropping", "events", len(batch), "error", err.Error())
		return true
	}

	t.queue.Requeue(batch, dropped)
	t.failed.Add(1)
	failures, retryIn := t.recordFailure()
	t.logger.Delivery().Warn("Batch delivery failed, requeued",
		"events", len(batch),
		"consecutiveFailures", failures,
		"retryIn", retryIn,
		"error", err.Error())
	return false
}

func (t *Tracker) resetBackoff() {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()
	t.failures = 0
	t.nextAttempt = time.Time{}
}

func (t *Tracker) recordFailure() (int, time.Duration) {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()
	t.failures++
	delay := backoffDelay(t.cfg.BackoffInitial, t.cfg.BackoffMax, t.failures)
	t.nextAttempt = t.clock.Now().Add(delay)
	return t.failures, delay
}

// backoffDelay doubles initial for every failure after the first, capped at ceiling.
func backoffDelay(initial, ceiling time.Duration, failures int) time.Duration {
	delay := initial
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return min(delay, ceiling)
}

func encodeBatch(batch []events.Event, dropped uint64, sentAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(events.Batch{
		Events:        batch,
		DroppedEvents: dropped,
		SentAt:        sentAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return payload, nil
}
