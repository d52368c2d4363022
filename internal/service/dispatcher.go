package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/clipgrab/internal/artifact"
	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/internal/fetcher"
	"github.com/iconidentify/clipgrab/internal/repository"
	"github.com/iconidentify/clipgrab/internal/worker"
)

// CaptionExtractor returns a caption for a request. It never fails.
type CaptionExtractor interface {
	Extract(ctx context.Context, req domain.MediaRequest) domain.ExtractionResult
}

// CaptionTranslator translates a caption, returning the input on failure.
type CaptionTranslator interface {
	Translate(ctx context.Context, text string) string
}

// MediaFetcher fills a sink with the media for a request.
type MediaFetcher interface {
	Fetch(ctx context.Context, req domain.MediaRequest, sink fetcher.Sink) (domain.MediaArtifact, error)
}

// ArtifactScope runs a produce/consume pair around a temporary file.
type ArtifactScope interface {
	WithScopedArtifact(ctx context.Context, produce artifact.Producer, consume artifact.Consumer) error
}

// Submitter schedules a task off the calling goroutine.
type Submitter interface {
	Submit(ctx context.Context, name string, task worker.Task) error
}

// Dispatcher drives the per-user conversation: a URL produces a caption
// with a menu, and a later button press copies the caption or downloads
// the video.
type Dispatcher struct {
	sessions   repository.SessionRepository
	extractor  CaptionExtractor
	translator CaptionTranslator
	fetcher    MediaFetcher
	artifacts  ArtifactScope
	transport  Transport
	pool       Submitter
	logger     *slog.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(
	sessions repository.SessionRepository,
	extractor CaptionExtractor,
	translator CaptionTranslator,
	mediaFetcher MediaFetcher,
	artifacts ArtifactScope,
	transport Transport,
	pool Submitter,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sessions:   sessions,
		extractor:  extractor,
		translator: translator,
		fetcher:    mediaFetcher,
		artifacts:  artifacts,
		transport:  transport,
		pool:       pool,
		logger:     logger.With("component", "dispatcher"),
	}
}

// Dispatch hands an event to the worker pool and returns without waiting
// for it to be handled.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	var name string
	switch e := ev.(type) {
	case TextMessage:
		name = "text"
	case ActionEvent:
		name = "action:" + string(e.Action)
	default:
		return fmt.Errorf("unsupported event type %T", ev)
	}

	task := func(ctx context.Context) {
		if err := d.Handle(ctx, ev); err != nil {
			d.logger.Error("handle event failed", "task", name, "user_id", ev.User(), "error", err)
		}
	}
	if err := d.pool.Submit(ctx, name, task); err != nil {
		return fmt.Errorf("submit %s: %w", name, err)
	}
	return nil
}

// Handle processes an event on the calling goroutine.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case TextMessage:
		return d.HandleText(ctx, e)
	case ActionEvent:
		return d.HandleAction(ctx, e)
	default:
		return fmt.Errorf("unsupported event type %T", ev)
	}
}

// HandleText processes a text message. Anything that is not a URL gets a
// guidance reply and leaves the session untouched. A URL replaces the
// user's session whatever state it was in.
func (d *Dispatcher) HandleText(ctx context.Context, msg TextMessage) error {
	text := strings.TrimSpace(msg.Text)
	if !domain.IsURL(text) {
		return d.transport.SendText(ctx, msg.ChatID, MsgInvalidInput)
	}

	req := domain.NewMediaRequest(text)
	logger := d.logger.With(
		"request_id", requestID(),
		"user_id", msg.UserID,
		"platform", req.Platform,
	)
	logger.Info("caption requested", "url", req.URL)

	if err := d.transport.SendText(ctx, msg.ChatID, MsgFetchingCaption); err != nil {
		logger.Warn("failed to send progress notice", "error", err)
	}

	start := time.Now()
	result := d.extractor.Extract(ctx, req)
	caption := result.Text
	if !result.IsFallback {
		caption = d.translator.Translate(ctx, caption)
	}

	if err := d.sessions.Save(ctx, domain.NewSession(msg.UserID, req.URL, caption)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	logger.Info("caption ready",
		"source", result.Source,
		"fallback", result.IsFallback,
		"duration", time.Since(start),
	)

	return d.transport.SendCaption(ctx, msg.ChatID, FormatCaption(caption), CaptionMenu)
}

// HandleAction processes a menu button press.
func (d *Dispatcher) HandleAction(ctx context.Context, ev ActionEvent) error {
	logger := d.logger.With(
		"request_id", requestID(),
		"user_id", ev.UserID,
		"action", ev.Action,
	)

	session, err := d.sessions.Get(ctx, ev.UserID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("get session: %w", err)
	}

	switch ev.Action {
	case ActionCopy:
		d.ack(ctx, logger, ev.CallbackID, "")
		if !session.HasCaption() {
			return d.transport.SendText(ctx, ev.ChatID, MsgNoCaption)
		}
		return d.transport.SendText(ctx, ev.ChatID, domain.Truncate(session.LastCaption, maxCopyRunes))

	case ActionDownload:
		d.ack(ctx, logger, ev.CallbackID, MsgDownloading)
		if !session.HasURL() {
			return d.transport.SendText(ctx, ev.ChatID, MsgNoURL)
		}
		return d.download(ctx, logger, ev, session)

	default:
		d.ack(ctx, logger, ev.CallbackID, "")
		logger.Warn("ignoring unknown action")
		return nil
	}
}

func (d *Dispatcher) download(ctx context.Context, logger *slog.Logger, ev ActionEvent, session *domain.Session) error {
	req := domain.NewMediaRequest(session.LastURL)
	logger = logger.With("platform", req.Platform, "url", req.URL)

	if err := d.sessions.SetState(ctx, ev.UserID, domain.SessionStateDownloading); err != nil {
		logger.Warn("failed to mark session downloading", "error", err)
	}
	defer func() {
		if err := d.sessions.SetState(context.WithoutCancel(ctx), ev.UserID, domain.SessionStateCaptionReady); err != nil {
			logger.Warn("failed to mark session caption ready", "error", err)
		}
	}()

	start := time.Now()
	err := d.artifacts.WithScopedArtifact(ctx,
		func(ctx context.Context, scratch *artifact.Scratch) (domain.MediaArtifact, error) {
			return d.fetcher.Fetch(ctx, req, scratch)
		},
		func(ctx context.Context, art domain.MediaArtifact) error {
			if err := d.transport.SendVideo(ctx, ev.ChatID, art); err != nil {
				return fmt.Errorf("send video: %w", err)
			}
			logger.Info("video delivered", "size", art.Size, "duration", time.Since(start))
			return nil
		},
	)
	if err != nil {
		logger.Warn("download failed", "error", err, "duration", time.Since(start))
		return d.transport.SendText(ctx, ev.ChatID, FormatDownloadFailure(err))
	}
	return nil
}

func (d *Dispatcher) ack(ctx context.Context, logger *slog.Logger, callbackID, notice string) {
	if callbackID == "" {
		return
	}
	if err := d.transport.AckAction(ctx, callbackID, notice); err != nil {
		logger.Warn("failed to acknowledge action", "error", err)
	}
}

func requestID() string {
	return "req_" + uuid.New().String()[:8]
}
