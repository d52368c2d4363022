package domain

import "time"

// UserID identifies a chat user. Transports decide its format.
type UserID string

// String returns the string representation of the UserID.
func (id UserID) String() string {
	return string(id)
}

// SessionState is the conversational state of a user.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateCaptionReady SessionState = "caption_ready"
	SessionStateDownloading  SessionState = "downloading"
)

// Session holds the per-user ephemeral conversation state.
type Session struct {
	UserID      UserID
	LastURL     string
	LastCaption string
	State       SessionState
	UpdatedAt   time.Time
}

// NewSession creates a session ready for actions on url and caption.
func NewSession(userID UserID, url, caption string) *Session {
	return &Session{
		UserID:      userID,
		LastURL:     url,
		LastCaption: caption,
		State:       SessionStateCaptionReady,
		UpdatedAt:   time.Now(),
	}
}

// HasURL returns true if a URL was recorded.
func (s *Session) HasURL() bool {
	return s != nil && s.LastURL != ""
}

// HasCaption returns true if a caption was recorded.
func (s *Session) HasCaption() bool {
	return s != nil && s.LastCaption != ""
}

// Transition moves the session to state as of at.
func (s *Session) Transition(state SessionState, at time.Time) {
	s.State = state
	s.UpdatedAt = at
}

// Clone returns a copy that can be read without holding store locks.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
