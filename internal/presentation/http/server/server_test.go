package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/container"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
)

func newTestServer(t *testing.T) (*httptest.Server, *container.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNopLogger()
	db, err := database.Open(database.Options{SQLitePath: filepath.Join(t.TempDir(), "collector.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateSchema())

	c := container.NewContainer(db, logger, container.CollectorConfig{CORSAllowOrigins: "*", MaxBodyBytes: 4096})
	ts := httptest.NewServer(New("0", c).Handler())
	t.Cleanup(ts.Close)
	return ts, c
}

func batchBody(t *testing.T, ids ...string) []byte {
	t.Helper()
	var list []events.Event
	for _, id := range ids {
		list = append(list, events.Event{ID: id, SessionID: "s1", Type: events.TypePageview, Timestamp: time.Now(), Path: "/"})
	}
	body, err := json.Marshal(events.Batch{Events: list})
	require.NoError(t, err)
	return body
}

func TestPostEventsAcceptsJSONAndBeaconBodies(t *testing.T) {
	ts, c := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/telemetry/events", "application/json", bytes.NewReader(batchBody(t, "a", "b")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack events.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, 2, ack.Accepted)

	beaconResp, err := http.Post(ts.URL+"/api/v1/telemetry/events", "text/plain;charset=UTF-8", bytes.NewReader(batchBody(t, "c")))
	require.NoError(t, err)
	beaconResp.Body.Close()
	assert.Equal(t, http.StatusOK, beaconResp.StatusCode)

	count, err := c.EventRepository.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPostEventsStatuses(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty batch", `{"events":[]}`, http.StatusNoContent},
		{"no events key", `{}`, http.StatusNoContent},
		{"malformed json", `{"events":`, http.StatusBadRequest},
		{"invalid event", `{"events":[{"id":"x"}]}`, http.StatusBadRequest},
		{"too large", `{"events":[],"pad":"` + strings.Repeat("x", 5000) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/telemetry/events", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "SQLite", body["database"])
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/telemetry/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://tractstack.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func postBatch(t *testing.T, url string, body []byte) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/telemetry/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// nextSSEData returns the data line of the next event named name.
func nextSSEData(t *testing.T, scanner *bufio.Scanner, name string) string {
	t.Helper()
	matched := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: "+name {
			matched = true
			continue
		}
		if matched && strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, scanner.Err())
	t.Fatalf("stream ended before %q event", name)
	return ""
}

func TestStreamDeliversIngestedEvents(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/telemetry/stream?sessionId=s1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	nextSSEData(t, scanner, "connected")

	postBatch(t, ts.URL, batchBody(t, "live-1"))

	var event events.Event
	require.NoError(t, json.Unmarshal([]byte(nextSSEData(t, scanner, "telemetry")), &event))
	assert.Equal(t, "live-1", event.ID)
	assert.Equal(t, "s1", event.SessionID)
}

func TestSocketDeliversIngestedEvents(t *testing.T) {
	ts, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/telemetry/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var greeting map[string]string
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "connected", greeting["type"])

	postBatch(t, ts.URL, batchBody(t, "ws-1", "ws-2"))

	for _, want := range []string{"ws-1", "ws-2"} {
		var event events.Event
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, want, event.ID)
	}
}
