package domain

import (
	"sync"
	"time"
)

// Identity is the verified account identity supplied by the credential
// collaborator at handshake time.
type Identity struct {
	UserID      string
	DisplayName string
}

// Session tracks the identity state of a single connection. A session starts
// pending and becomes bound exactly once, after the handshake verifies the
// client's credentials. Operations that need an identity must check the bound
// state instead of reading zero values.
type Session struct {
	id           string
	identity     Identity
	bound        bool
	createdAt    time.Time
	lastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		createdAt:    now,
		lastActiveAt: now,
	}
}

// Bind attaches a verified identity to the session. The first call wins;
// later calls report false and leave the session unchanged.
func (s *Session) Bind(identity Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return false
	}
	s.identity = identity
	s.bound = true
	s.lastActiveAt = time.Now()
	return true
}

// Identity returns the bound identity, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.bound
}

func (s *Session) IsBound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// DisplayName returns the bound display name, or the sentinel "unknown" for
// a pending session. Post-handshake callers should never hit the sentinel.
func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.bound {
		return "unknown"
	}
	return s.identity.DisplayName
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
