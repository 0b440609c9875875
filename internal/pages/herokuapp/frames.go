package herokuapp

import (
	"context"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/surface"
)

var (
	framesetTop = locator.CSS(`frame[name="frame-top"]`)
	middleText  = locator.ID("content")
	frameBody   = locator.CSS("body")
)

// NestedFrames is the /nested_frames example: frame-top holds frame-left,
// frame-middle and frame-right; frame-bottom sits below.
type NestedFrames struct{ app }

// Open navigates to the example.
func (n *NestedFrames) Open(ctx context.Context) error {
	if err := n.Goto(ctx, n.url("/nested_frames")); err != nil {
		return err
	}
	return n.WaitCount(ctx, framesetTop, 1)
}

// Frame looks up a frame by name anywhere below the page.
func (n *NestedFrames) Frame(ctx context.Context, name string) (*surface.Surface, error) {
	return n.Coordinator().FindFrame(ctx, n.Surface(), name, surface.DefaultFrameDepth)
}

// FrameText returns the body text of the named frame.
func (n *NestedFrames) FrameText(ctx context.Context, name string) (string, error) {
	f, err := n.Frame(ctx, name)
	if err != nil {
		return "", err
	}
	return n.Text(ctx, frameBody.In(f))
}

// MiddleText returns the #content text of frame-middle.
func (n *NestedFrames) MiddleText(ctx context.Context) (string, error) {
	f, err := n.Frame(ctx, "frame-middle")
	if err != nil {
		return "", err
	}
	return n.Text(ctx, middleText.In(f))
}
