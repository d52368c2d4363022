package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iconidentify/clipgrab/internal/domain"
)

// InMemorySessionRepository implements SessionRepository using in-memory storage.
// Sessions live for the process lifetime unless pruned.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*domain.Session
	now      func() time.Time
}

// NewInMemorySessionRepository creates a new in-memory session repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[domain.UserID]*domain.Session),
		now:      time.Now,
	}
}

// Get returns a copy of the user's session.
func (r *InMemorySessionRepository) Get(ctx context.Context, userID domain.UserID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session.Clone(), nil
}

// Save replaces the user's session. The stored record is a copy, so later
// changes by the caller are not visible to other readers.
func (r *InMemorySessionRepository) Save(ctx context.Context, session *domain.Session) error {
	stored := session.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[stored.UserID] = stored

	return nil
}

// SetState changes the state of an existing session.
func (r *InMemorySessionRepository) SetState(ctx context.Context, userID domain.UserID, state domain.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[userID]
	if !ok {
		return domain.ErrSessionNotFound
	}

	// Replace rather than mutate so clones handed out earlier stay stable.
	updated := session.Clone()
	updated.Transition(state, r.now())
	r.sessions[userID] = updated

	return nil
}

// Delete removes the user's session.
func (r *InMemorySessionRepository) Delete(ctx context.Context, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, userID)

	return nil
}

// Count returns session statistics.
func (r *InMemorySessionRepository) Count(ctx context.Context) (*SessionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &SessionStats{Total: len(r.sessions)}
	for _, session := range r.sessions {
		switch session.State {
		case domain.SessionStateIdle:
			stats.Idle++
		case domain.SessionStateCaptionReady:
			stats.CaptionReady++
		case domain.SessionStateDownloading:
			stats.Downloading++
		}
	}

	return stats, nil
}

// Prune removes sessions idle for longer than maxIdle. Sessions with a
// download in progress are kept.
func (r *InMemorySessionRepository) Prune(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.State == domain.SessionStateDownloading {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}

	return removed, nil
}
