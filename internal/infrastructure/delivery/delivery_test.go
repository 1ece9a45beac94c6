package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
)

func TestHTTPSenderClassifiesResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		retryable bool
	}{
		{"ok with ack", http.StatusOK, `{"accepted":2}`, false, false},
		{"no content", http.StatusNoContent, "", false, false},
		{"ok with invalid ack", http.StatusOK, "accepted", false, false},
		{"bad request", http.StatusBadRequest, `{"error":"malformed"}`, true, false},
		{"payload too large", http.StatusRequestEntityTooLarge, "", true, false},
		{"request timeout", http.StatusRequestTimeout, "", true, true},
		{"too many requests", http.StatusTooManyRequests, "", true, true},
		{"server error", http.StatusInternalServerError, "", true, true},
		{"bad gateway", http.StatusBadGateway, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotContentType, gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotContentType = r.Header.Get("Content-Type")
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			sender := NewHTTPSender(server.URL, server.Client(), time.Second, logging.NewNopLogger())
			err := sender.Send(context.Background(), []byte(`{"events":[]}`))

			assert.Equal(t, "application/json", gotContentType)
			assert.Equal(t, `{"events":[]}`, gotBody)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var deliveryErr *telemetry.DeliveryError
			require.True(t, errors.As(err, &deliveryErr))
			assert.Equal(t, tt.status, deliveryErr.StatusCode)
			assert.Equal(t, tt.retryable, telemetry.IsRetryable(err))
		})
	}
}

func TestHTTPSenderLogsUnexpectedAckShape(t *testing.T) {
	for _, body := range []string{`[1,2]`, `{"accepted":"many"}`} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer server.Close()

			var logs bytes.Buffer
			logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
				Output:       &logs,
				JSONFormat:   true,
				DefaultLevel: slog.LevelDebug,
			})
			require.NoError(t, err)

			sender := NewHTTPSender(server.URL, server.Client(), time.Second, logger)
			require.NoError(t, sender.Send(context.Background(), []byte(`{"events":[]}`)))
			assert.Contains(t, logs.String(), "unexpected shape")
		})
	}
}

func TestHTTPSenderTransportFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sender := NewHTTPSender(url, nil, time.Second, logging.NewNopLogger())
	err := sender.Send(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, telemetry.IsRetryable(err))
}

func TestHTTPSenderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	sender := NewHTTPSender(server.URL, server.Client(), 50*time.Millisecond, logging.NewNopLogger())
	err := sender.Send(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, telemetry.IsRetryable(err))
}

func TestHTTPBeaconDispatchesWithoutWaiting(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	beacon := NewHTTPBeacon(server.URL, server.Client(), 1024, time.Second, logging.NewNopLogger())
	assert.True(t, beacon.SendBeacon([]byte(`{"events":[{"id":"1"}]}`)))
	beacon.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"events":[{"id":"1"}]}`}, bodies)
	assert.Equal(t, beaconContentType, contentType)
}

func TestHTTPBeaconRefusesOversizedPayloads(t *testing.T) {
	beacon := NewHTTPBeacon("http://127.0.0.1:1", nil, 16, time.Second, logging.NewNopLogger())
	assert.False(t, beacon.SendBeacon([]byte(strings.Repeat("x", 17))))
}

func TestHTTPBeaconQuotaCoversInFlightBytes(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()

	beacon := NewHTTPBeacon(server.URL, server.Client(), 20, 5*time.Second, logging.NewNopLogger())
	payload := []byte(strings.Repeat("x", 12))

	assert.True(t, beacon.SendBeacon(payload))
	assert.False(t, beacon.SendBeacon(payload), "quota is held while the first beacon is in flight")

	close(release)
	beacon.Wait()
	assert.True(t, beacon.SendBeacon(payload), "quota is released once the beacon completes")
	beacon.Wait()
}
