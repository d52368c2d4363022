package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrSessionNotFound is returned when no session exists for a user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCaptionNotFound is returned when a strategy finds no usable caption.
	ErrCaptionNotFound = errors.New("caption not found")

	// ErrUnsupportedPlatform is returned when no fetch backend handles a platform.
	ErrUnsupportedPlatform = errors.New("platform not supported for download")

	// ErrAllBackendsFailed is returned when every fetch backend failed.
	ErrAllBackendsFailed = errors.New("all download backends failed")

	// ErrNoMediaURL is returned when a lookup yields no playable media URL.
	ErrNoMediaURL = errors.New("no media URL found")

	// ErrEmptyArtifact is returned when a backend reports success but wrote nothing.
	ErrEmptyArtifact = errors.New("downloaded file is empty")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrURLExpired is returned when the media URL has expired or is forbidden.
	ErrURLExpired = errors.New("media URL has expired")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")

	// ErrLookupFailed is returned when a lookup API reports an error.
	ErrLookupFailed = errors.New("lookup API failed")

	// ErrTranslationFailed is returned when the translation backend fails.
	ErrTranslationFailed = errors.New("translation failed")
)

// FailureKind classifies a FetchFailure.
type FailureKind string

const (
	FailureUnsupported       FailureKind = "unsupported"
	FailureAllBackendsFailed FailureKind = "all_backends_failed"
)

// FetchFailure is the error returned by a media fetch that produced no artifact.
// Err carries the last concrete backend error.
type FetchFailure struct {
	Kind     FailureKind
	Platform Platform
	Backend  string // last backend attempted, empty for unsupported
	Err      error
}

func (e *FetchFailure) Error() string {
	if e.Kind == FailureUnsupported {
		return fmt.Sprintf("%s: %s", ErrUnsupportedPlatform.Error(), e.Platform)
	}
	if e.Err == nil {
		return ErrAllBackendsFailed.Error()
	}
	return e.Err.Error()
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *FetchFailure) Is(target error) bool {
	switch target {
	case ErrUnsupportedPlatform:
		return e.Kind == FailureUnsupported
	case ErrAllBackendsFailed:
		return e.Kind == FailureAllBackendsFailed
	}
	return false
}

// NewUnsupported creates a FetchFailure for a platform without backends.
func NewUnsupported(platform Platform) *FetchFailure {
	return &FetchFailure{
		Kind:     FailureUnsupported,
		Platform: platform,
		Err:      ErrUnsupportedPlatform,
	}
}

// BackendError wraps an error with the backend and step that produced it.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Op != "" {
		return e.Backend + " " + e.Op + ": " + e.Err.Error()
	}
	return e.Backend + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new BackendError.
func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{
		Backend: backend,
		Op:      op,
		Err:     err,
	}
}

// ExtractionError wraps a caption extraction failure.
type ExtractionError struct {
	Platform Platform
	Strategy string
	Err      error
}

func (e *ExtractionError) Error() string {
	return "extract caption [" + e.Platform.String() + "/" + e.Strategy + "]: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
