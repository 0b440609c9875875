// Package engine defines the narrow surface the harness consumes from a
// browser automation engine. Production runs use the go-rod implementation
// in rodengine; framework validation uses the in-memory memengine.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrNoElement is returned by Query when nothing matches the selector.
	ErrNoElement = errors.New("no element matches selector")
	// ErrDetached is returned by any operation on a closed page or frame.
	ErrDetached = errors.New("browsing context detached")
	// ErrNotFrame is returned by Element.Frame for non-frame elements.
	ErrNotFrame = errors.New("element is not a frame")
	// ErrNotInteractable is returned by element actions on an element that
	// is hidden, disabled or covered at the moment of the action.
	ErrNotInteractable = errors.New("element not interactable")
)

// Browser launches isolated browser contexts.
type Browser interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}

// Context is one isolated browser context: its own cookies, storage and pages.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one addressable browsing context: a top-level page, a popup or a
// frame. Frames returned by ChildFrames or Element.Frame are Pages too.
type Page interface {
	// ID is stable for the lifetime of the underlying browsing context.
	ID() string
	// Name returns window.name, which is the frame name for frames.
	Name(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// WaitIdle blocks until the page has no in-flight work.
	WaitIdle(ctx context.Context) error

	// Query returns the first match or ErrNoElement.
	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	ChildFrames(ctx context.Context) ([]Page, error)

	Screenshot(ctx context.Context) ([]byte, error)

	// Detached reports whether the browsing context is gone.
	Detached(ctx context.Context) bool
	Close(ctx context.Context) error

	// The Expect* methods arm a one-shot listener and return its wait
	// function. Callers must arm before running the triggering action.
	ExpectPopup(ctx context.Context) func() (Page, error)
	ExpectFrame(ctx context.Context) func() (Page, error)
	ExpectDialog(ctx context.Context) func() (Dialog, error)
	ExpectDownload(ctx context.Context, dir string) func() (*Download, error)
}

// Element is a resolved DOM element. It goes stale when the page re-renders.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	// Select picks the <option> whose value or label equals value.
	Select(ctx context.Context, value string) error
	Hover(ctx context.Context) error
	// DragTo presses on the element, moves to target and releases there.
	DragTo(ctx context.Context, target Element) error
	SetFiles(ctx context.Context, paths []string) error

	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	// WaitActionable blocks until the element is visible and enabled.
	WaitActionable(ctx context.Context) error
	// Center returns the viewport coordinates of the element's center.
	Center(ctx context.Context) (x, y float64, err error)

	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Frame returns the content document of an iframe/frame element.
	Frame(ctx context.Context) (Page, error)
}

// DialogKind is the type of a native JavaScript dialog.
type DialogKind string

const (
	DialogAlert        DialogKind = "alert"
	DialogConfirm      DialogKind = "confirm"
	DialogPrompt       DialogKind = "prompt"
	DialogBeforeUnload DialogKind = "beforeunload"
)

// Dialog is an open native dialog. The engine blocks the page until one of
// Accept or Dismiss is called.
type Dialog interface {
	Kind() DialogKind
	Message() string
	DefaultPrompt() string
	Accept(ctx context.Context, promptText string) error
	Dismiss(ctx context.Context) error
}

// Download describes a finished download.
type Download struct {
	URL               string
	SuggestedFilename string
	// Path is where the engine stored the file.
	Path string
}
