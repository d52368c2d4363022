package service

import "github.com/iconidentify/clipgrab/internal/domain"

// Action is the payload of a menu button.
type Action string

const (
	ActionCopy     Action = "copy"
	ActionDownload Action = "download"
)

// Event is an inbound interaction delivered by a transport.
type Event interface {
	User() domain.UserID
}

// TextMessage is a free-text message from a user.
type TextMessage struct {
	UserID domain.UserID
	ChatID int64
	Text   string
}

// User returns the sender.
func (m TextMessage) User() domain.UserID { return m.UserID }

// ActionEvent is a menu button press.
type ActionEvent struct {
	UserID     domain.UserID
	ChatID     int64
	Action     Action
	CallbackID string // transport handle used to acknowledge the press
}

// User returns the sender.
func (e ActionEvent) User() domain.UserID { return e.UserID }
