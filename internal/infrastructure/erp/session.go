package erp

import (
	"context"
	"sync"
	"time"

	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
)

// Session is an authenticated Odoo session. It is passed explicitly into
// every call rather than kept in process-wide state.
type Session struct {
	UID           int64
	Database      string
	Login         string
	EstablishedAt time.Time
}

// Authenticator establishes sessions.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Session, error)
}

// SessionProvider hands out the current session and renews it on demand.
// Each provider owns its session; there is no global login state.
type SessionProvider struct {
	auth   Authenticator
	maxAge time.Duration

	mu      sync.Mutex
	current *Session
}

// NewSessionProvider creates a provider. Sessions older than maxAge are
// renewed before use; zero means they only renew when rejected.
func NewSessionProvider(auth Authenticator, maxAge time.Duration) *SessionProvider {
	return &SessionProvider{auth: auth, maxAge: maxAge}
}

// Acquire returns the current session, authenticating when there is none or
// it is older than the maximum age.
func (p *SessionProvider) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && (p.maxAge <= 0 || time.Since(p.current.EstablishedAt) < p.maxAge) {
		return p.current, nil
	}
	sess, err := p.auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	p.current = sess
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "session_renewed", "uid", sess.UID)
	return sess, nil
}

// Invalidate drops sess if it is still the current session, so the next
// Acquire authenticates again. A session renewed meanwhile by another caller
// is kept.
func (p *SessionProvider) Invalidate(sess *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == sess {
		p.current = nil
	}
}
