package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are governed by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandlers serves the live feed of ingested events
type StreamHandlers struct {
	broadcaster messaging.Broadcaster
	heartbeat   time.Duration
	logger      *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers with injected dependencies.
// heartbeat <= 0 uses config.StreamHeartbeat.
func NewStreamHandlers(broadcaster messaging.Broadcaster, heartbeat time.Duration, logger *logging.ChanneledLogger) *StreamHandlers {
	if heartbeat <= 0 {
		heartbeat = config.StreamHeartbeat
	}
	return &StreamHandlers{
		broadcaster: broadcaster,
		heartbeat:   heartbeat,
		logger:      logger,
	}
}

func connectedMessage(sessionID string) []byte {
	message, _ := json.Marshal(gin.H{
		"type":      "connected",
		"sessionId": sessionID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return message
}

// GetStream handles GET /api/v1/telemetry/stream as Server-Sent Events. The
// optional sessionId query parameter narrows the feed to one session.
func (h *StreamHandlers) GetStream(c *gin.Context) {
	sessionID := c.Query("sessionId")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// The server's write timeout would otherwise cut long-lived streams.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Stream().Debug("Write deadline not adjustable; stream ends at server write timeout", "error", err.Error())
	}

	ch := h.broadcaster.Subscribe(sessionID)
	defer h.broadcaster.Unsubscribe(ch, sessionID)

	if _, err := fmt.Fprintf(c.Writer, "event: connected\ndata: %s\n\n", connectedMessage(sessionID)); err != nil {
		return
	}
	c.Writer.Flush()

	h.logger.Stream().Info("SSE stream opened", "sessionId", sessionID, "remoteAddr", c.ClientIP())

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	connectionStart := time.Now()
	clientCtx := c.Request.Context()
	for {
		select {
		case <-clientCtx.Done():
			h.logger.Stream().Info("SSE stream closed", "sessionId", sessionID, "connectionDuration", time.Since(connectionStart))
			return

		case message := <-ch:
			if _, err := fmt.Fprintf(c.Writer, "event: telemetry\ndata: %s\n\n", message); err != nil {
				h.logger.Stream().Error("SSE write failed", "sessionId", sessionID, "error", err.Error())
				return
			}
			c.Writer.Flush()

		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				h.logger.Stream().Error("SSE heartbeat failed", "sessionId", sessionID, "error", err.Error())
				return
			}
			c.Writer.Flush()
		}
	}
}

// GetSocket handles GET /api/v1/telemetry/ws, the WebSocket rendition of the
// same feed. Every text message after the greeting is one event.
func (h *StreamHandlers) GetSocket(c *gin.Context) {
	sessionID := c.Query("sessionId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ch := h.broadcaster.Subscribe(sessionID)
	defer h.broadcaster.Unsubscribe(ch, sessionID)

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, connectedMessage(sessionID)); err != nil {
		return
	}
	h.logger.Stream().Info("WebSocket stream opened", "sessionId", sessionID, "remoteAddr", c.ClientIP())

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Stream().Info("WebSocket stream closed", "sessionId", sessionID)
			return

		case message := <-ch:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Stream().Error("WebSocket write failed", "sessionId", sessionID, "error", err.Error())
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				return
			}
		}
	}
}
