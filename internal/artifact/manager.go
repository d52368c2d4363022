// Package artifact manages the temporary files that hold downloaded media.
// Every file is uniquely named per request and removed when its scope ends.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
)

// Producer fills scratch and returns the finished artifact.
type Producer func(ctx context.Context, scratch *Scratch) (domain.MediaArtifact, error)

// Consumer receives the finished artifact, typically to send it.
type Consumer func(ctx context.Context, artifact domain.MediaArtifact) error

// Manager allocates scoped artifacts under a temp directory.
type Manager struct {
	dir          string
	minFreeBytes int64
	freeSpace    func(path string) int64
	logger       *slog.Logger
}

// NewManager creates a Manager rooted at cfg.TempPath.
func NewManager(cfg config.StorageConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:          cfg.TempPath,
		minFreeBytes: cfg.MinFreeBytes,
		freeSpace:    getFreeDiskSpace,
		logger:       logger.With("component", "artifact"),
	}
}

// Dir returns the directory artifacts are created in.
func (m *Manager) Dir() string {
	return m.dir
}

// WithScopedArtifact allocates a uniquely named file, lets produce fill it and
// consume deliver it, then deletes it. Deletion happens on every path:
// producer failure, consumer failure, panic, or success.
func (m *Manager) WithScopedArtifact(ctx context.Context, produce Producer, consume Consumer) error {
	scratch, err := m.allocate()
	if err != nil {
		return err
	}
	logger := m.logger.With("artifact", filepath.Base(scratch.Path()))
	defer func() {
		if err := scratch.discard(); err != nil {
			logger.Error("failed to remove artifact", "error", err)
			return
		}
		logger.Debug("artifact removed")
	}()

	art, err := produce(ctx, scratch)
	if err != nil {
		return err
	}
	if err := scratch.close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if art.Path == "" {
		art.Path = scratch.Path()
	}
	if art.Size <= 0 {
		size, err := scratch.Size()
		if err != nil {
			return err
		}
		art.Size = size
	}
	if art.Size <= 0 {
		return domain.ErrEmptyArtifact
	}

	logger.Debug("artifact ready", "size", art.Size)
	return consume(ctx, art)
}

func (m *Manager) allocate() (*Scratch, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	if m.minFreeBytes > 0 {
		if free := m.freeSpace(m.dir); free >= 0 && free < m.minFreeBytes {
			m.logger.Warn("refusing artifact allocation, disk nearly full",
				"free_bytes", free,
				"min_free_bytes", m.minFreeBytes,
			)
			return nil, domain.ErrStorageFull
		}
	}

	path := filepath.Join(m.dir, "media_"+uuid.New().String()+".mp4")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create artifact file: %w", err)
	}
	return &Scratch{path: path, file: f}, nil
}

// Scratch is the writable target handed to a producer. Backends either
// write through it or let an external tool write to Path.
type Scratch struct {
	path string
	file *os.File
}

// Path returns the file location.
func (s *Scratch) Path() string {
	return s.path
}

// Write appends to the file, reopening it after a Reset.
func (s *Scratch) Write(p []byte) (int, error) {
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return 0, fmt.Errorf("open artifact file: %w", err)
		}
		s.file = f
	}
	return s.file.Write(p)
}

// Reset discards anything written so far, including partial files an
// external tool may have left next to Path.
func (s *Scratch) Reset() error {
	if err := s.close(); err != nil {
		return err
	}
	if err := removeIfExists(s.path + ".part"); err != nil {
		return err
	}
	if err := os.Truncate(s.path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("truncate artifact: %w", err)
	}
	return nil
}

// Size returns the current size of the file on disk.
func (s *Scratch) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	return info.Size(), nil
}

func (s *Scratch) close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Scratch) discard() error {
	s.close()
	if err := removeIfExists(s.path + ".part"); err != nil {
		return err
	}
	return removeIfExists(s.path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
