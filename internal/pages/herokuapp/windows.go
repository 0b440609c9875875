package herokuapp

import (
	"context"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/surface"
)

var (
	windowsHeading = locator.CSS("h3").WithText("Opening a new window")
	newWindowLink  = locator.CSS(`a[href="/windows/new"]`)
	heading3       = locator.CSS("h3")
)

// Windows is the /windows example.
type Windows struct{ app }

// Open navigates to the example.
func (w *Windows) Open(ctx context.Context) error {
	return w.open(ctx, "/windows", windowsHeading)
}

// NewWindow is the popup the example opens.
type NewWindow struct{ *page.Base }

// Heading returns the popup's heading.
func (n *NewWindow) Heading(ctx context.Context) (string, error) {
	return n.Text(ctx, heading3)
}

// Close closes the popup; the opener stays usable.
func (n *NewWindow) Close(ctx context.Context) error {
	return n.Coordinator().CloseSurface(ctx, n.Surface())
}

// OpenNewWindow clicks the link and returns a page object bound to the
// popup it opens.
func (w *Windows) OpenNewWindow(ctx context.Context) (*NewWindow, error) {
	popup, err := w.Coordinator().SpawnAndTrack(ctx, w.Surface(), surface.SpawnPopup, func(ctx context.Context) error {
		return w.Click(ctx, newWindowLink)
	})
	if err != nil {
		return nil, err
	}
	nw := &NewWindow{Base: w.On(popup)}
	if err := nw.WaitVisible(ctx, heading3); err != nil {
		return nil, err
	}
	return nw, nil
}
