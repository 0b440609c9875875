package surface

import (
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/uiharness/internal/engine"
)

var (
	ErrDetached              = errors.New("surface detached")
	ErrSpawnTimeout          = errors.New("spawned surface never observed")
	ErrNotFound              = errors.New("frame not found")
	ErrDialogMismatch        = errors.New("dialog does not match expectation")
	ErrDialogAlreadyResolved = errors.New("dialog already resolved")
	ErrDownloadMismatch      = errors.New("download filename does not match expectation")
)

// DetachedError reports an operation against a closed or detached surface.
type DetachedError struct {
	Surface string
	Cause   error
}

func (e *DetachedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("surface %s detached: %v", e.Surface, e.Cause)
	}
	return fmt.Sprintf("surface %s detached", e.Surface)
}

func (e *DetachedError) Unwrap() error { return e.Cause }

func (e *DetachedError) Is(target error) bool { return target == ErrDetached }

// SpawnTimeoutError reports that the expected popup, frame, dialog or
// download never appeared.
type SpawnTimeoutError struct {
	Kind    SpawnKind
	Timeout time.Duration
}

func (e *SpawnTimeoutError) Error() string {
	return fmt.Sprintf("no %s observed within %s", e.Kind, e.Timeout)
}

func (e *SpawnTimeoutError) Is(target error) bool { return target == ErrSpawnTimeout }

// FrameNotFoundError reports a failed frame lookup.
type FrameNotFoundError struct {
	Name     string
	MaxDepth int
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("frame %q not found within depth %d", e.Name, e.MaxDepth)
}

func (e *FrameNotFoundError) Is(target error) bool { return target == ErrNotFound }

// DialogMismatchError reports a dialog whose kind or message differed from
// the expectation. The dialog has still been resolved.
type DialogMismatchError struct {
	ExpectedKind    engine.DialogKind
	ActualKind      engine.DialogKind
	ExpectedMessage string
	ActualMessage   string
}

func (e *DialogMismatchError) Error() string {
	if e.ExpectedKind != "" && e.ExpectedKind != e.ActualKind {
		return fmt.Sprintf("expected %s dialog, got %s %q", e.ExpectedKind, e.ActualKind, e.ActualMessage)
	}
	return fmt.Sprintf("expected dialog message %q, got %q", e.ExpectedMessage, e.ActualMessage)
}

func (e *DialogMismatchError) Is(target error) bool { return target == ErrDialogMismatch }

// DownloadMismatchError reports an unexpected suggested filename.
type DownloadMismatchError struct {
	Expected  string
	Suggested string
}

func (e *DownloadMismatchError) Error() string {
	return fmt.Sprintf("expected download %q, server suggested %q", e.Expected, e.Suggested)
}

func (e *DownloadMismatchError) Is(target error) bool { return target == ErrDownloadMismatch }

// IsDetached reports whether err means the browsing context went away,
// either as a DetachedError or straight from the engine.
func IsDetached(err error) bool {
	return errors.Is(err, ErrDetached) || errors.Is(err, engine.ErrDetached)
}
