// Package telegram connects the dispatcher to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/internal/service"
)

// MaxUploadBytes is the Bot API limit for files sent by a bot.
const MaxUploadBytes = 50 << 20

// ErrTooLarge is returned when a video exceeds MaxUploadBytes.
var ErrTooLarge = errors.New("video exceeds telegram upload limit")

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// EventHandler receives inbound events.
type EventHandler interface {
	Dispatch(ctx context.Context, ev service.Event) error
}

// Adapter implements service.Transport over the Bot API.
type Adapter struct {
	bot         botAPI
	pollTimeout int
	maxRetry    time.Duration
	logger      *slog.Logger
}

// New connects to the Bot API with the configured token.
func New(cfg config.TelegramConfig, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telegram")
	installLibraryLogger(&slogBotLogger{log: logger}, logger)

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return newAdapter(bot, cfg.PollTimeout, logger), nil
}

func newAdapter(bot botAPI, pollTimeout int, logger *slog.Logger) *Adapter {
	return &Adapter{
		bot:         bot,
		pollTimeout: pollTimeout,
		maxRetry:    30 * time.Second,
		logger:      logger,
	}
}

// Run polls for updates and hands each one to handler until ctx is done.
func (a *Adapter) Run(ctx context.Context, handler EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.pollTimeout
	updates := a.bot.GetUpdatesChan(u)

	a.logger.Info("polling for updates", "timeout", a.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			// The poller closes the channel once its in-flight request returns.
			go func() {
				for range updates {
				}
			}()
			a.logger.Info("stopped polling")
			return nil

		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			ev, ok := toEvent(update)
			if !ok {
				continue
			}
			if err := handler.Dispatch(ctx, ev); err != nil {
				a.logger.Error("failed to dispatch update",
					"update_id", update.UpdateID,
					"user_id", ev.User(),
					"error", err,
				)
			}
		}
	}
}

// toEvent converts an update into a dispatcher event. Updates without a
// sender or without usable content are skipped.
func toEvent(update tgbotapi.Update) (service.Event, bool) {
	if q := update.CallbackQuery; q != nil {
		if q.From == nil {
			return nil, false
		}
		chatID := q.From.ID
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
		}
		return service.ActionEvent{
			UserID:     userID(q.From),
			ChatID:     chatID,
			Action:     service.Action(strings.TrimSpace(q.Data)),
			CallbackID: q.ID,
		}, true
	}

	if m := update.Message; m != nil {
		if m.From == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
			return nil, false
		}
		return service.TextMessage{
			UserID: userID(m.From),
			ChatID: m.Chat.ID,
			Text:   m.Text,
		}, true
	}

	return nil, false
}

func userID(u *tgbotapi.User) domain.UserID {
	return domain.UserID(strconv.FormatInt(u.ID, 10))
}

// SendText sends a plain message.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	return a.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// SendCaption sends a message with an inline keyboard, one button per row.
func (a *Adapter) SendCaption(ctx context.Context, chatID int64, text string, menu []service.MenuButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(menu) > 0 {
		msg.ReplyMarkup = menuMarkup(menu)
	}
	return a.send(ctx, msg)
}

func menuMarkup(menu []service.MenuButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu))
	for _, b := range menu {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, string(b.Action)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendVideo uploads the artifact file.
func (a *Adapter) SendVideo(ctx context.Context, chatID int64, artifact domain.MediaArtifact) error {
	if artifact.Size > MaxUploadBytes {
		return fmt.Errorf("%w: %d MB", ErrTooLarge, artifact.Size>>20)
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(artifact.Path))
	video.SupportsStreaming = true
	return a.send(ctx, video)
}

// AckAction answers a callback query so the client stops its spinner.
func (a *Adapter) AckAction(ctx context.Context, callbackID, notice string) error {
	_, err := a.bot.Request(tgbotapi.NewCallback(callbackID, notice))
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// send delivers c, waiting out one flood-control response if the API asks.
func (a *Adapter) send(ctx context.Context, c tgbotapi.Chattable) error {
	_, err := a.bot.Send(c)
	if wait := retryAfter(err); wait > 0 && wait <= a.maxRetry {
		a.logger.Warn("telegram rate limited, retrying", "retry_after", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err = a.bot.Send(c)
	}
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func retryAfter(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

func installLibraryLogger(l tgbotapi.BotLogger, logger *slog.Logger) {
	if err := tgbotapi.SetLogger(l); err != nil {
		logger.Warn("failed to install telegram library logger", "error", err)
	}
}

// slogBotLogger routes the library's internal logging to slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
