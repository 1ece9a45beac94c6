// Package messaging defines interfaces for real-time communication.
package messaging

import "github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"

// Broadcaster fans ingested events out to live subscribers. An empty session
// id subscribes to every session.
type Broadcaster interface {
	Subscribe(sessionID string) chan []byte
	Unsubscribe(ch chan []byte, sessionID string)
	SubscriberCount(sessionID string) int
	Publish(list []events.Event)
}
