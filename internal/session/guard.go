package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoginPath is where a torn-down session is sent
const LoginPath = "/login"

// ProfileFetcher loads the current user for the session's token
type ProfileFetcher interface {
	Profile(ctx context.Context) (*domain.User, error)
}

// Redirector sends the UI to another path
type Redirector interface {
	Redirect(path string)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(path string)

// Redirect implements Redirector
func (f RedirectFunc) Redirect(path string) { f(path) }

// Guard verifies the session when a protected page mounts
type Guard struct {
	session   *Session
	profiles  ProfileFetcher
	redirect  Redirector
	publisher websocket.EventPublisher
	logger    zerolog.Logger

	// epoch advances on every teardown and login; a check started in an older epoch is stale
	mu        sync.Mutex
	epoch     uint64
	teardowns []func()
}

// NewGuard creates a new Guard. A nil publisher disables the session.expired push.
func NewGuard(session *Session, profiles ProfileFetcher, redirect Redirector, publisher websocket.EventPublisher) *Guard {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	if redirect == nil {
		redirect = RedirectFunc(func(string) {})
	}
	return &Guard{
		session:   session,
		profiles:  profiles,
		redirect:  redirect,
		publisher: publisher,
		logger:    log.With().Str("component", "session_guard").Logger(),
	}
}

// Outcome is how a mount finished
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"  // identity cached or no token
	OutcomeVerified Outcome = "verified" // identity fetched and cached
	OutcomeExpired  Outcome = "expired"  // session torn down, redirected
	OutcomeStale    Outcome = "stale"    // finished after unmount or a session change; nothing applied
)

// Mount is one in-flight identity check
type Mount struct {
	guard     *Guard
	epoch     uint64
	token     string
	unmounted bool
	cancel    context.CancelFunc
	done      chan struct{}
	outcome   Outcome
	err       error
}

// Mount starts the identity check for a protected page. A cached identity or
// a missing token finishes immediately without a network call.
func (g *Guard) Mount(ctx context.Context) *Mount {
	g.mu.Lock()
	m := &Mount{guard: g, epoch: g.epoch, token: g.session.Token(), done: make(chan struct{})}
	g.mu.Unlock()

	if g.session.Identity() != nil || !g.session.Active() {
		m.cancel = func() {}
		m.outcome = OutcomeSkipped
		close(m.done)
		return m
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
	return m
}

func (m *Mount) run(ctx context.Context) {
	defer close(m.done)
	defer m.cancel()
	g := m.guard

	user, err := g.profiles.Profile(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	// a cancelled check proves nothing about the session
	if m.unmounted || m.epoch != g.epoch || ctx.Err() != nil || g.session.Token() != m.token {
		m.outcome = OutcomeStale
		return
	}

	if err == nil && user != nil {
		g.session.SetIdentity(user)
		m.outcome = OutcomeVerified
		return
	}
	if err == nil {
		err = errors.New("profile response was empty")
	}

	var aErr *domain.AuthError
	if errors.As(err, &aErr) {
		g.logger.Debug().Int("status", aErr.Status).Msg("Session rejected by ledger")
	} else {
		g.logger.Error().Err(err).Msg("Failed to fetch the user information")
	}

	// fail closed on any error
	m.err = err
	m.outcome = OutcomeExpired
	g.teardown()
	g.redirect.Redirect(LoginPath)
	g.publisher.Publish(websocket.SessionExpired(LoginPath))
}

// Unmount abandons the check. A result arriving afterwards changes nothing.
func (m *Mount) Unmount() {
	g := m.guard
	g.mu.Lock()
	m.unmounted = true
	g.mu.Unlock()
	m.cancel()
}

// Wait blocks until the check finishes and returns its outcome. err is the
// ledger failure that expired the session, if any.
func (m *Mount) Wait() (Outcome, error) {
	<-m.done
	return m.outcome, m.err
}

// Done is closed when the check finishes
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// Start begins a session after login. Checks still in flight for the previous
// token become stale.
func (g *Guard) Start(token string, user *domain.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	g.session.Start(token, user)
}

// Logout tears the session down on request. Checks still in flight become stale.
func (g *Guard) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardown()
}

// OnTeardown registers fn to run whenever the session ends, by expiry or
// logout. fn runs with the guard locked and must not call back into it.
func (g *Guard) OnTeardown(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardowns = append(g.teardowns, fn)
}

// teardown ends the session. g.mu must be held.
func (g *Guard) teardown() {
	g.epoch++
	g.session.Teardown()
	for _, fn := range g.teardowns {
		fn()
	}
}

// Session returns the guarded session
func (g *Guard) Session() *Session {
	return g.session
}
