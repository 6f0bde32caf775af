package memory

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"manualsmap/internal/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// sessionEntry is a session with the time it expires unless used again.
type sessionEntry struct {
	session   *session.Session
	expiresAt time.Time
}

// SessionRepository keeps sessions in memory and drops them after they have
// been idle for the configured TTL. Every GetByID extends the TTL.
//
// Go Learning Note — Background Goroutines:
// A sweeper goroutine removes expired sessions every sweep interval. It exits
// when Stop is called, so tests do not leak goroutines.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionRepository creates the repository and starts its sweeper.
func NewSessionRepository(ttl, sweepInterval time.Duration) *SessionRepository {
	r := &SessionRepository{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go r.sweep(sweepInterval)
	return r
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return ErrSessionExists
	}
	r.sessions[s.ID] = &sessionEntry{session: s, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.sessions[id]
	if !exists || !r.now().Before(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}
	entry.expiresAt = r.now().Add(r.ttl)
	return entry.session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	entry, exists := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	entry.session.Close()
	return nil
}

func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

// Stop ends the sweeper. It is safe to call more than once.
func (r *SessionRepository) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *SessionRepository) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.removeExpired()
		case <-r.stop:
			return
		}
	}
}

// removeExpired drops every session past its TTL and returns how many.
func (r *SessionRepository) removeExpired() int {
	now := r.now()

	r.mu.Lock()
	var expired []*session.Session
	for id, entry := range r.sessions {
		if !now.Before(entry.expiresAt) {
			expired = append(expired, entry.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		log.Printf("[SESSION] Session %s expired", s.ID)
	}
	return len(expired)
}
