package messaging

import (
	"encoding/json"
	"sync"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// AllSessions is the subscription key for the unfiltered feed.
const AllSessions = ""

// EventBroadcaster manages session-scoped subscriber channels. Each message is
// one JSON-encoded event.
type EventBroadcaster struct {
	sessions   map[string][]chan []byte // sessionId -> channels
	bufferSize int
	mu         sync.Mutex
	logger     *logging.ChanneledLogger
}

// NewEventBroadcaster creates a broadcaster whose subscriber channels hold
// bufferSize messages. bufferSize <= 0 uses config.StreamBufferSize.
func NewEventBroadcaster(bufferSize int, logger *logging.ChanneledLogger) *EventBroadcaster {
	if bufferSize <= 0 {
		bufferSize = config.StreamBufferSize
	}
	return &EventBroadcaster{
		sessions:   make(map[string][]chan []byte),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber for sessionID.
func (b *EventBroadcaster) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = append(b.sessions[sessionID], ch)

	b.logger.Stream().Debug("Stream subscriber registered", "sessionId", sessionID)
	return ch
}

// Unsubscribe removes a subscriber. The channel is not closed; the caller
// owns it.
func (b *EventBroadcaster) Unsubscribe(ch chan []byte, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, exists := b.sessions[sessionID]
	if !exists {
		return
	}
	remaining := make([]chan []byte, 0, len(clients))
	for _, client := range clients {
		if client != ch {
			remaining = append(remaining, client)
		}
	}
	if len(remaining) == 0 {
		delete(b.sessions, sessionID)
	} else {
		b.sessions[sessionID] = remaining
	}
	b.logger.Stream().Debug("Stream subscriber unregistered", "sessionId", sessionID)
}

// SubscriberCount returns the number of subscribers for sessionID.
func (b *EventBroadcaster) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// Publish delivers each event to the subscribers of its session and to the
// unfiltered feed, in order. Slow subscribers miss messages rather than block
// ingestion.
func (b *EventBroadcaster) Publish(list []events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.sessions) == 0 {
		return
	}
	for _, event := range list {
		targets := b.sessions[event.SessionID]
		if event.SessionID != AllSessions {
			targets = append(targets[:len(targets):len(targets)], b.sessions[AllSessions]...)
		}
		if len(targets) == 0 {
			continue
		}
		message, err := json.Marshal(event)
		if err != nil {
			b.logger.Stream().Error("Failed to encode event for stream", "eventId", event.ID, "error", err.Error())
			continue
		}
		for _, ch := range targets {
			select {
			case ch <- message:
			default:
				b.logger.Stream().Warn("Stream channel full, message dropped", "sessionId", event.SessionID, "eventId", event.ID)
			}
		}
	}
}
