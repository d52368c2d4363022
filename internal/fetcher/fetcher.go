// Package fetcher retrieves media files through an ordered chain of
// platform-specific backends.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/iconidentify/clipgrab/internal/domain"
)

// Sink is the writable target a backend fills. Backends either write
// through it or let an external tool write to Path.
type Sink interface {
	io.Writer
	Path() string
	Reset() error
	Size() (int64, error)
}

// Backend is one concrete way of retrieving media for a platform.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, req domain.MediaRequest, sink Sink) error
}

// Fetcher tries each backend for a platform in order until one succeeds.
type Fetcher struct {
	chains map[domain.Platform][]Backend
	logger *slog.Logger
}

// New creates a Fetcher with the given per-platform chains.
func New(chains map[domain.Platform][]Backend, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		chains: chains,
		logger: logger.With("component", "fetcher"),
	}
}

// Backends returns the backend names configured for a platform, in order.
func (f *Fetcher) Backends(p domain.Platform) []string {
	chain := f.chains[p]
	names := make([]string, 0, len(chain))
	for _, b := range chain {
		names = append(names, b.Name())
	}
	return names
}

// Fetch fills sink with the media for req. On failure it returns a
// *domain.FetchFailure and sink holds no data.
func (f *Fetcher) Fetch(ctx context.Context, req domain.MediaRequest, sink Sink) (domain.MediaArtifact, error) {
	chain := f.chains[req.Platform]
	if len(chain) == 0 {
		return domain.MediaArtifact{}, domain.NewUnsupported(req.Platform)
	}

	logger := f.logger.With("platform", req.Platform, "url", req.URL)
	failure := &domain.FetchFailure{
		Kind:     domain.FailureAllBackendsFailed,
		Platform: req.Platform,
	}

	for _, backend := range chain {
		if err := ctx.Err(); err != nil {
			failure.Err = err
			break
		}

		start := time.Now()
		size, err := f.attempt(ctx, backend, req, sink)
		if err == nil {
			logger.Info("media fetched",
				"backend", backend.Name(),
				"size", size,
				"duration", time.Since(start),
			)
			return domain.MediaArtifact{Path: sink.Path(), Size: size}, nil
		}

		failure.Backend = backend.Name()
		failure.Err = err
		logger.Warn("fetch backend failed",
			"backend", backend.Name(),
			"error", err,
			"duration", time.Since(start),
		)

		if rerr := sink.Reset(); rerr != nil {
			logger.Error("failed to discard partial artifact", "backend", backend.Name(), "error", rerr)
		}
	}

	return domain.MediaArtifact{}, failure
}

func (f *Fetcher) attempt(ctx context.Context, backend Backend, req domain.MediaRequest, sink Sink) (size int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewBackendError(backend.Name(), "", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := backend.Fetch(ctx, req, sink); err != nil {
		var be *domain.BackendError
		if errors.As(err, &be) {
			return 0, err
		}
		return 0, domain.NewBackendError(backend.Name(), "", err)
	}

	size, err = sink.Size()
	if err != nil {
		return 0, domain.NewBackendError(backend.Name(), "stat", err)
	}
	if size <= 0 {
		return 0, domain.NewBackendError(backend.Name(), "", domain.ErrEmptyArtifact)
	}
	return size, nil
}
