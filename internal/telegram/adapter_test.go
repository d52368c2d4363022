package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBot implements botAPI and records outgoing calls.
type fakeBot struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErrs []error // consumed one per Send call
	stopped  bool
	timeout  int
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeBot) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.mu.Lock()
	f.timeout = cfg.Timeout
	f.mu.Unlock()
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type recordingHandler struct {
	mu     sync.Mutex
	events []service.Event
	err    error
}

func (h *recordingHandler) Dispatch(ctx context.Context, ev service.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestToEvent(t *testing.T) {
	user := &tgbotapi.User{ID: 7}
	chat := &tgbotapi.Chat{ID: 99}

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   service.Event
		ok     bool
	}{
		{
			name:   "text message",
			update: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "https://youtu.be/x"}},
			want:   service.TextMessage{UserID: "7", ChatID: 99, Text: "https://youtu.be/x"},
			ok:     true,
		},
		{
			name:   "command passes through as text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "/start"}},
			want:   service.TextMessage{UserID: "7", ChatID: 99, Text: "/start"},
			ok:     true,
		},
		{
			name: "callback with message",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "cb-1", From: user, Data: "download",
				Message: &tgbotapi.Message{Chat: chat},
			}},
			want: service.ActionEvent{UserID: "7", ChatID: 99, Action: service.ActionDownload, CallbackID: "cb-1"},
			ok:   true,
		},
		{
			name: "callback without message uses sender chat",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "cb-2", From: user, Data: "copy",
			}},
			want: service.ActionEvent{UserID: "7", ChatID: 7, Action: service.ActionCopy, CallbackID: "cb-2"},
			ok:   true,
		},
		{
			name:   "photo without text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat}},
			ok:     false,
		},
		{
			name:   "message without sender",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat, Text: "hi"}},
			ok:     false,
		},
		{
			name:   "callback without sender",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", Data: "copy"}},
			ok:     false,
		},
		{
			name:   "empty update",
			update: tgbotapi.Update{},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toEvent(tt.update)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("event = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRun_DispatchesUntilCancelled(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 25, testLogger())
	handler := &recordingHandler{err: errors.New("pool full")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, handler) }()

	user := &tgbotapi.User{ID: 1}
	chat := &tgbotapi.Chat{ID: 1}
	bot.updates <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{From: user, Chat: chat, Text: "https://youtu.be/a"}}
	bot.updates <- tgbotapi.Update{UpdateID: 2} // skipped
	bot.updates <- tgbotapi.Update{UpdateID: 3, CallbackQuery: &tgbotapi.CallbackQuery{ID: "c", From: user, Data: "copy"}}

	deadline := time.Now().Add(2 * time.Second)
	for handler.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if handler.count() != 2 {
		t.Fatalf("dispatched %d events, want 2", handler.count())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	bot.mu.Lock()
	defer bot.mu.Unlock()
	if !bot.stopped {
		t.Error("StopReceivingUpdates not called")
	}
	if bot.timeout != 25 {
		t.Errorf("poll timeout = %d, want 25", bot.timeout)
	}
}

func TestRun_ChannelClosed(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())
	close(bot.updates)
	bot.stopped = true

	if err := a.Run(context.Background(), &recordingHandler{}); err == nil {
		t.Error("expected error when updates channel closes")
	}
}

func TestSendCaption_BuildsMenu(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())

	if err := a.SendCaption(context.Background(), 5, "caption", service.CaptionMenu); err != nil {
		t.Fatalf("SendCaption() error = %v", err)
	}

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", bot.sent[0])
	}
	if msg.ChatID != 5 || msg.Text != "caption" {
		t.Errorf("message = chat %d text %q", msg.ChatID, msg.Text)
	}
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("ReplyMarkup = %T", msg.ReplyMarkup)
	}
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	wantData := []string{"copy", "download"}
	for i, row := range markup.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons", i, len(row))
		}
		if row[0].CallbackData == nil || *row[0].CallbackData != wantData[i] {
			t.Errorf("row %d data = %v, want %s", i, row[0].CallbackData, wantData[i])
		}
		if row[0].Text != service.CaptionMenu[i].Label {
			t.Errorf("row %d label = %q", i, row[0].Text)
		}
	}
}

func TestSendText(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())

	if err := a.SendText(context.Background(), 3, "halo"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	if msg.ReplyMarkup != nil {
		t.Error("plain text should have no markup")
	}
}

func TestSendVideo(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())

	err := a.SendVideo(context.Background(), 8, domain.MediaArtifact{Path: "/tmp/media_x.mp4", Size: 1024})
	if err != nil {
		t.Fatalf("SendVideo() error = %v", err)
	}
	video, ok := bot.sent[0].(tgbotapi.VideoConfig)
	if !ok {
		t.Fatalf("sent %T, want VideoConfig", bot.sent[0])
	}
	if video.ChatID != 8 || !video.SupportsStreaming {
		t.Errorf("video = %+v", video)
	}
	if fp, ok := video.File.(tgbotapi.FilePath); !ok || string(fp) != "/tmp/media_x.mp4" {
		t.Errorf("File = %#v", video.File)
	}
}

func TestSendVideo_TooLarge(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())

	err := a.SendVideo(context.Background(), 8, domain.MediaArtifact{Path: "/tmp/big.mp4", Size: MaxUploadBytes + 1})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("error = %v, want ErrTooLarge", err)
	}
	if len(bot.sent) != 0 {
		t.Error("oversized video should not be sent")
	}
}

func TestAckAction(t *testing.T) {
	bot := newFakeBot()
	a := newAdapter(bot, 1, testLogger())

	if err := a.AckAction(context.Background(), "cb-9", service.MsgDownloading); err != nil {
		t.Fatalf("AckAction() error = %v", err)
	}
	cb, ok := bot.requests[0].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("request %T, want CallbackConfig", bot.requests[0])
	}
	if cb.CallbackQueryID != "cb-9" || cb.Text != service.MsgDownloading {
		t.Errorf("callback = %+v", cb)
	}
}

func TestSend_RetriesAfterFloodControl(t *testing.T) {
	bot := newFakeBot()
	bot.sendErrs = []error{&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 1",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
	}}
	a := newAdapter(bot, 1, testLogger())

	if err := a.SendText(context.Background(), 1, "hi"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if len(bot.sent) != 2 {
		t.Errorf("send attempts = %d, want 2", len(bot.sent))
	}
}

func TestSend_NoRetryWhenWaitTooLong(t *testing.T) {
	bot := newFakeBot()
	bot.sendErrs = []error{&tgbotapi.Error{
		Code:               429,
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3600},
	}}
	a := newAdapter(bot, 1, testLogger())

	if err := a.SendText(context.Background(), 1, "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(bot.sent) != 1 {
		t.Errorf("send attempts = %d, want 1", len(bot.sent))
	}
}

func TestSend_OtherErrorsNotRetried(t *testing.T) {
	bot := newFakeBot()
	bot.sendErrs = []error{errors.New("network down")}
	a := newAdapter(bot, 1, testLogger())

	if err := a.SendText(context.Background(), 1, "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(bot.sent) != 1 {
		t.Errorf("send attempts = %d, want 1", len(bot.sent))
	}
}

func TestInstallLibraryLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	installLibraryLogger(nil, logger)
	if !strings.Contains(logs.String(), "failed to install telegram library logger") {
		t.Errorf("nil logger not reported: %q", logs.String())
	}

	logs.Reset()
	installLibraryLogger(&slogBotLogger{log: logger}, logger)
	if strings.Contains(logs.String(), "failed") {
		t.Errorf("unexpected warning: %q", logs.String())
	}
}

var _ service.Transport = (*Adapter)(nil)
