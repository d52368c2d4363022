package service

import (
	"context"

	"github.com/iconidentify/clipgrab/internal/domain"
)

// MenuButton is one inline button attached to a caption.
type MenuButton struct {
	Label  string
	Action Action
}

// CaptionMenu is the menu sent with every caption, one button per row.
var CaptionMenu = []MenuButton{
	{Label: "📋 Copy Caption", Action: ActionCopy},
	{Label: "⬇️ Download Video", Action: ActionDownload},
}

// Transport delivers replies to a chat.
type Transport interface {
	// SendText sends a plain text reply.
	SendText(ctx context.Context, chatID int64, text string) error

	// SendCaption sends text with the action menu attached.
	SendCaption(ctx context.Context, chatID int64, text string, menu []MenuButton) error

	// SendVideo uploads the artifact. The file is removed after this returns.
	SendVideo(ctx context.Context, chatID int64, artifact domain.MediaArtifact) error

	// AckAction acknowledges a button press, optionally showing notice.
	AckAction(ctx context.Context, callbackID, notice string) error
}
