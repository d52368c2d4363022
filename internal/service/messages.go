package service

import "github.com/iconidentify/clipgrab/internal/domain"

// User-facing replies.
const (
	MsgInvalidInput    = "❌ Kirim link TikTok / YouTube"
	MsgFetchingCaption = "⚡ Mengambil caption..."
	MsgCaptionHeader   = "📝 CAPTION (ID):\n\n"
	MsgNoCaption       = "❌ Tidak ada caption"
	MsgNoURL           = "❌ URL tidak ditemukan."
	MsgDownloadFailed  = "❌ Gagal download:\n"
	MsgDownloading     = "⏳ Downloading video..."
)

const (
	maxCaptionRunes = 3500
	maxCopyRunes    = 4000
)

// FormatCaption renders the caption reply body.
func FormatCaption(caption string) string {
	return MsgCaptionHeader + domain.Truncate(caption, maxCaptionRunes)
}

// FormatDownloadFailure renders the reply for a failed download.
func FormatDownloadFailure(err error) string {
	return MsgDownloadFailed + err.Error()
}
