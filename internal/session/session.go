// Package session owns the bearer token and the cached identity of the signed-in
// user, and guards page access by checking the identity against the ledger.
package session

import (
	"sync"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
)

// Session is the explicitly owned authentication context. It is passed by
// reference to everything that needs the token; there is no global session.
type Session struct {
	mu       sync.RWMutex
	token    string
	identity *domain.User
}

// New creates a session, optionally seeded with a persisted token
func New(token string) *Session {
	return &Session{token: token}
}

// Start begins a session after a successful login
func (s *Session) Start(token string, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.identity = copyUser(user)
}

// SetToken replaces the bearer token and forgets the identity bound to the old one
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		s.identity = nil
	}
	s.token = token
}

// Token implements ledger.TokenSource
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the cached user, or nil
func (s *Session) Identity() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.identity)
}

// SetIdentity caches the current user
func (s *Session) SetIdentity(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = copyUser(user)
}

// Active reports whether a token is held
func (s *Session) Active() bool {
	return s.Token() != ""
}

// Teardown clears the token and the identity
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = nil
}

func copyUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	out := *user
	return &out
}
