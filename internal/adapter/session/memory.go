package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.SessionStore = (*MemoryStore)(nil)

const defaultSweepInterval = time.Minute

type entry struct {
	session   domain.Session
	expiresAt time.Time
}

// A MemoryStore keeps sessions in process memory.
// Sessions expire after ttl without a write or read.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

type MemoryOpt func(*MemoryStore)

// WithClock replaces time.Now, used in tests.
func WithClock(now func() time.Time) MemoryOpt {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(ttl time.Duration, opts ...MemoryOpt) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(
	ctx context.Context, id string, session domain.Session,
) error {
	const op = "MemoryStore.Create"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = entry{session, s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(
	ctx context.Context, id string,
) (domain.Session, error) {
	const op = "MemoryStore.Get"

	if err := ctx.Err(); err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id)
	if !ok {
		return domain.Session{}, fmt.Errorf("%s: %w", op, domain.ErrSessionNotFound)
	}
	s.sessions[id] = entry{e.session, s.now().Add(s.ttl)}
	return e.session, nil
}

func (s *MemoryStore) Update(
	ctx context.Context,
	id string,
	fn func(domain.Session) (domain.Session, error),
) (domain.Session, error) {
	const op = "MemoryStore.Update"

	if err := ctx.Err(); err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id)
	if !ok {
		return domain.Session{}, fmt.Errorf("%s: %w", op, domain.ErrSessionNotFound)
	}

	next, err := fn(e.session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.sessions[id] = entry{next, s.now().Add(s.ttl)}
	return next, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	const op = "MemoryStore.Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(id); !ok {
		return fmt.Errorf("%s: %w", op, domain.ErrSessionNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included
// until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	const op = "MemoryStore.Run"
	log := slog.With("op", op)

	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
			if n := s.sweep(); n != 0 {
				log.Debug("expired sessions removed", "nSessions", n)
			}
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	now := s.now()
	for id, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// lookup must be called with s.mu held.
func (s *MemoryStore) lookup(id string) (entry, bool) {
	e, ok := s.sessions[id]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.sessions, id)
		return entry{}, false
	}
	return e, true
}
