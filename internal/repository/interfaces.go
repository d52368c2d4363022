package repository

import (
	"context"
	"time"

	"github.com/iconidentify/clipgrab/internal/domain"
)

// SessionRepository stores per-user conversation state.
type SessionRepository interface {
	// Get returns a copy of the user's session, or domain.ErrSessionNotFound.
	Get(ctx context.Context, userID domain.UserID) (*domain.Session, error)

	// Save replaces the user's session as a whole.
	Save(ctx context.Context, session *domain.Session) error

	// SetState changes only the state of an existing session.
	SetState(ctx context.Context, userID domain.UserID, state domain.SessionState) error

	// Delete removes the user's session. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID domain.UserID) error

	// Count returns the number of sessions per state.
	Count(ctx context.Context) (*SessionStats, error)

	// Prune removes sessions not updated within maxIdle and returns how many were removed.
	Prune(ctx context.Context, maxIdle time.Duration) (int, error)
}

// SessionStats contains session counts by state.
type SessionStats struct {
	Total        int `json:"total"`
	Idle         int `json:"idle"`
	CaptionReady int `json:"caption_ready"`
	Downloading  int `json:"downloading"`
}
