// Package session provides domain entities for the visitor session that
// correlates every telemetry event recorded in one storage scope.
package session

import (
	"sync"
	"time"
)

// Device classes
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Referrer sources
const (
	ReferrerDirect   = "direct"
	ReferrerSearch   = "search"
	ReferrerSocial   = "social"
	ReferrerInternal = "internal"
	ReferrerOther    = "other"
)

// Unknown is the best-effort classification when nothing matches.
const Unknown = "unknown"

// DeviceContext holds the static environment facts derived once per session.
type DeviceContext struct {
	DeviceType     string `json:"deviceType"`
	Browser        string `json:"browser"`
	OS             string `json:"os"`
	ReferrerSource string `json:"referrerSource"`
	Referrer       string `json:"referrer,omitempty"`
	UserAgent      string `json:"userAgent"`
	DoNotTrack     bool   `json:"doNotTrack"`
}

// Session is the visitor identity for one storage scope. The identifier is
// fixed at construction; only the user binding may change afterwards.
type Session struct {
	id          string
	device      DeviceContext
	landingPath string
	createdAt   time.Time

	mu     sync.RWMutex
	userID string
}

// NewSession creates a session record around an already persisted identifier.
func NewSession(id string, device DeviceContext, landingPath string, createdAt time.Time) *Session {
	return &Session{
		id:          id,
		device:      device,
		landingPath: landingPath,
		createdAt:   createdAt,
	}
}

// ID returns the immutable session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Device() DeviceContext {
	return s.device
}

func (s *Session) LandingPath() string {
	return s.landingPath
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// BindUser attaches an authenticated user id carried by all later events.
func (s *Session) BindUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// UserID returns the bound user id, or "" before authentication.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}
