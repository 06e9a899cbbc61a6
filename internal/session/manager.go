package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Manager applies the session TTL policy on top of a Store and runs the
// background janitor that removes idle sessions.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Ensure returns the session stored under id, or a fresh one when id is
// empty, unknown, or past its TTL. The second return is true when a new
// session was created and the caller should reissue the cookie.
func (m *Manager) Ensure(ctx context.Context, id string) (*Session, bool, error) {
	if id != "" {
		s, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			if m.now().Sub(s.LastSeenAt) < m.ttl {
				return s, false, nil
			}
			// Expired: drop it and fall through to a fresh session.
			_ = m.store.Delete(ctx, id)
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	}

	now := m.now().UTC()
	s := &Session{
		ID:         uuid.NewString(),
		CSRFToken:  uuid.NewString(),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Save touches the session and writes it back to the store, replacing the
// previously persisted value wholesale.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.LastSeenAt = m.now().UTC()
	return m.store.Save(ctx, s)
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// StartJanitor periodically deletes sessions idle past the TTL. onSweep
// may be nil; it receives the number of sessions dropped per sweep.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration, onSweep func(dropped int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dropped, err := m.store.DeleteExpired(ctx, m.now().Add(-m.ttl))
				if err == nil && onSweep != nil {
					onSweep(dropped)
				}
			}
		}
	}()
}
