package confirm

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/lockbot/internal/access"
)

// tokenBytes is the token entropy: 128 bits.
const tokenBytes = 16

// Decision is the outcome of resolving a confirmation.
type Decision int

const (
	// Expired means no token was pending, the token did not match, or it outlived the TTL.
	Expired Decision = iota
	// Approved means the token matched and the action may proceed.
	Approved
	// Rejected means the token matched and the user declined.
	Rejected
)

// String returns a label suitable for logs and metric labels.
func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "expired"
	}
}

type pending struct {
	token    string
	issuedAt time.Time
}

// Manager holds the pending token of every identity.
//
// All public methods are thread-safe.
type Manager struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader

	mu      sync.Mutex
	pending map[access.Identity]pending
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRandom replaces crypto/rand.Reader. Used by tests.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.random = r }
}

// NewManager creates a manager. A zero ttl disables wall-clock expiry.
func NewManager(ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		ttl:     ttl,
		now:     time.Now,
		random:  rand.Reader,
		pending: make(map[access.Identity]pending),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue mints a URL-safe token for id, replacing any pending one.
//
// Parameters:
//   - id: Identity the token is bound to
//
// Returns:
//   - string: The new token, unpadded base64url
//   - error: If the random source failed; no token is stored then
func (m *Manager) Issue(id access.Identity) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("generating confirmation token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	m.mu.Lock()
	m.pending[id] = pending{token: token, issuedAt: m.now()}
	m.mu.Unlock()

	return token, nil
}

// Confirm resolves a "yes" press. It returns Approved only when token is the
// live pending token of id. The pending token is cleared in every case.
func (m *Manager) Confirm(id access.Identity, token string) Decision {
	if m.take(id, token) {
		return Approved
	}
	return Expired
}

// Reject resolves a "no" press. It returns Rejected when token was the live
// pending token of id, Expired otherwise. The pending token is cleared in
// every case.
func (m *Manager) Reject(id access.Identity, token string) Decision {
	if m.take(id, token) {
		return Rejected
	}
	return Expired
}

// Cancel clears any pending token of id without a decision and reports
// whether one was pending.
func (m *Manager) Cancel(id access.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.pending[id]
	delete(m.pending, id)
	return ok
}

// Pending returns the number of identities with a live token.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.pending {
		if !m.expired(p) {
			n++
		}
	}
	return n
}

// Sweep drops tokens that outlived the TTL and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, p := range m.pending {
		if m.expired(p) {
			delete(m.pending, id)
			n++
		}
	}
	return n
}

// take clears the pending token of id and reports whether it matched token
// and was still within the TTL.
func (m *Manager) take(id access.Identity, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[id]
	delete(m.pending, id)
	if !ok || token == "" || m.expired(p) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) == 1
}

// expired reports whether p outlived the TTL. Caller must hold m.mu.
func (m *Manager) expired(p pending) bool {
	return m.ttl > 0 && m.now().Sub(p.issuedAt) > m.ttl
}
