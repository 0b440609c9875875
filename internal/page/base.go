// Package page provides the primitives every page object is built from.
// Each action resolves its locator right before acting, so an element
// re-rendered between two calls is never used stale.
package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/artifact"
	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
	"github.com/v0xg/uiharness/internal/recording"
	"github.com/v0xg/uiharness/internal/surface"
	"github.com/v0xg/uiharness/internal/wait"
)

// ErrNotActionable matches every NotActionableError.
var ErrNotActionable = errors.New("element not actionable")

// NotActionableError reports a locator that never resolved to a visible,
// enabled element within the action timeout.
type NotActionableError struct {
	Action  string
	Locator string
	Elapsed time.Duration
	Cause   error
}

func (e *NotActionableError) Error() string {
	msg := fmt.Sprintf("%s %s: not actionable after %s", e.Action, e.Locator, e.Elapsed.Round(time.Millisecond))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotActionableError) Unwrap() error { return e.Cause }

func (e *NotActionableError) Is(target error) bool { return target == ErrNotActionable }

// Options are shared by every page object of a session.
type Options struct {
	Timeouts       config.TimeoutConfig
	ThumbnailWidth uint
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Recorder       *recording.Recorder
}

// Base holds the surface a page object currently operates on. It does not
// own the surface; the coordinator does.
type Base struct {
	surface *surface.Surface
	coord   *surface.Coordinator
	opts    Options
	logger  *zap.Logger
}

// New binds a Base to s.
func New(coord *surface.Coordinator, s *surface.Surface, opts Options) *Base {
	if opts.Timeouts.Action <= 0 {
		opts.Timeouts.Action = 10 * time.Second
	}
	if opts.Timeouts.Wait <= 0 {
		opts.Timeouts.Wait = wait.DefaultTimeout
	}
	if opts.Timeouts.Poll <= 0 {
		opts.Timeouts.Poll = wait.DefaultPoll
	}
	if opts.Timeouts.Navigation <= 0 {
		opts.Timeouts.Navigation = 30 * time.Second
	}
	return &Base{
		surface: s,
		coord:   coord,
		opts:    opts,
		logger:  observability.OrNop(opts.Logger).Named("page"),
	}
}

// On returns a Base with the same settings bound to s, typically a popup
// or frame the coordinator handed out.
func (b *Base) On(s *surface.Surface) *Base {
	nb := *b
	nb.surface = s
	return &nb
}

func (b *Base) Surface() *surface.Surface         { return b.surface }
func (b *Base) Coordinator() *surface.Coordinator { return b.coord }
func (b *Base) Timeouts() config.TimeoutConfig    { return b.opts.Timeouts }
func (b *Base) Logger() *zap.Logger               { return b.logger }

// Goto navigates the surface and waits for the network to settle.
func (b *Base) Goto(ctx context.Context, url string) error {
	if err := b.surface.CheckAttached(ctx); err != nil {
		return err
	}
	nctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Navigation)
	defer cancel()

	b.logger.Debug("navigate", zap.String("url", url), zap.Stringer("surface", b.surface))
	p := b.surface.Page()
	if err := p.Navigate(nctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitIdle(nctx); err != nil {
		return fmt.Errorf("wait idle on %s: %w", url, err)
	}
	b.capture(ctx, nil)
	return nil
}

// URL returns the surface's current URL.
func (b *Base) URL(ctx context.Context) (string, error) {
	if err := b.surface.CheckAttached(ctx); err != nil {
		return "", err
	}
	return b.surface.Page().URL(ctx)
}

// Reload reloads the surface and waits for the network to settle.
func (b *Base) Reload(ctx context.Context) error {
	return wait.ReloadRecovery(b.surface)(ctx)
}

// Click clicks the element ref designates.
func (b *Base) Click(ctx context.Context, ref locator.Ref) error {
	return b.act(ctx, "click", ref, true, func(ctx context.Context, el engine.Element) error {
		return el.Click(ctx)
	})
}

// Fill replaces the value of an input or textarea.
func (b *Base) Fill(ctx context.Context, ref locator.Ref, text string) error {
	return b.act(ctx, "fill", ref, false, func(ctx context.Context, el engine.Element) error {
		return el.Fill(ctx, text)
	})
}

// Select picks an option of a <select> by value or label.
func (b *Base) Select(ctx context.Context, ref locator.Ref, value string) error {
	return b.act(ctx, "select", ref, false, func(ctx context.Context, el engine.Element) error {
		return el.Select(ctx, value)
	})
}

// Hover moves the pointer over the element.
func (b *Base) Hover(ctx context.Context, ref locator.Ref) error {
	return b.act(ctx, "hover", ref, false, func(ctx context.Context, el engine.Element) error {
		return el.Hover(ctx)
	})
}

// Drag presses on src and releases it over dst.
func (b *Base) Drag(ctx context.Context, src, dst locator.Ref) error {
	return b.act(ctx, "drag", src, true, func(ctx context.Context, el engine.Element) error {
		to, err := locator.Resolve(ctx, b.target(dst), dst)
		if err != nil {
			return err
		}
		if err := to.WaitActionable(ctx); err != nil {
			return err
		}
		return el.DragTo(ctx, to)
	})
}

// Check clicks a checkbox or radio unless it is already checked.
func (b *Base) Check(ctx context.Context, ref locator.Ref) error {
	return b.setChecked(ctx, "check", ref, true)
}

// Uncheck clicks a checkbox unless it is already unchecked.
func (b *Base) Uncheck(ctx context.Context, ref locator.Ref) error {
	return b.setChecked(ctx, "uncheck", ref, false)
}

func (b *Base) setChecked(ctx context.Context, action string, ref locator.Ref, want bool) error {
	return b.act(ctx, action, ref, true, func(ctx context.Context, el engine.Element) error {
		_, on, err := el.Attribute(ctx, "checked")
		if err != nil || on == want {
			return err
		}
		if err := el.Click(ctx); err != nil {
			return err
		}
		if _, on, err = el.Attribute(ctx, "checked"); err != nil {
			return err
		}
		if on != want {
			return fmt.Errorf("checked state did not change to %t", want)
		}
		return nil
	})
}

// SetInputFiles sets the files of an <input type=file>.
func (b *Base) SetInputFiles(ctx context.Context, ref locator.Ref, paths ...string) error {
	return b.act(ctx, "set_files", ref, false, func(ctx context.Context, el engine.Element) error {
		return el.SetFiles(ctx, paths)
	})
}

// act resolves ref, waits until it is actionable and runs do, retrying the
// resolution while the element is missing, stale or not yet interactable.
// Any other error ends the action at once. Everything is bounded by the
// action timeout.
func (b *Base) act(ctx context.Context, action string, ref locator.Ref, click bool, do func(context.Context, engine.Element) error) (err error) {
	start := time.Now()
	defer func() { b.opts.Metrics.RecordAction(action, err) }()

	actx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Action)
	defer cancel()

	target := b.target(ref)
	var lastErr error
	for {
		el, rerr := locator.Resolve(actx, target, ref)
		if rerr == nil {
			rerr = el.WaitActionable(actx)
		}
		if rerr == nil {
			marker := b.marker(actx, el, click)
			rerr = do(actx, el)
			if rerr == nil {
				b.logger.Debug(action, zap.Stringer("locator", ref), zap.Stringer("surface", target))
				b.capture(ctx, marker)
				return nil
			}
		}
		if derr := detached(ctx, target, rerr); derr != nil {
			return derr
		}
		if !retryable(rerr) {
			return fmt.Errorf("%s %s: %w", action, ref, rerr)
		}
		if !errors.Is(rerr, context.DeadlineExceeded) || lastErr == nil {
			lastErr = rerr
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", action, ref, ctx.Err())
		case <-actx.Done():
			return &NotActionableError{Action: action, Locator: ref.String(), Elapsed: time.Since(start), Cause: lastErr}
		case <-time.After(b.opts.Timeouts.Poll):
		}
	}
}

// retryable reports whether an element error means the DOM moved under us.
func retryable(err error) bool {
	return errors.Is(err, locator.ErrNoMatch) ||
		errors.Is(err, engine.ErrNoElement) ||
		errors.Is(err, engine.ErrDetached) ||
		errors.Is(err, engine.ErrNotInteractable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// detached turns err into a DetachedError when the surface itself is gone.
// A detached element on a live surface is just a stale node.
func detached(ctx context.Context, s *surface.Surface, err error) error {
	if !surface.IsDetached(err) {
		return nil
	}
	if cerr := s.CheckAttached(ctx); cerr != nil {
		return cerr
	}
	return nil
}

func (b *Base) target(ref locator.Ref) *surface.Surface {
	if s := ref.Scope(); s != nil {
		return s
	}
	return b.surface
}

func (b *Base) marker(ctx context.Context, el engine.Element, click bool) *recording.Marker {
	if b.opts.Recorder == nil {
		return nil
	}
	x, y, err := el.Center(ctx)
	if err != nil {
		return nil
	}
	return &recording.Marker{X: int(x), Y: int(y), Click: click}
}

func (b *Base) capture(ctx context.Context, m *recording.Marker) {
	if b.opts.Recorder == nil {
		return
	}
	if err := b.opts.Recorder.Capture(ctx, b.surface.Page(), m); err != nil {
		b.logger.Debug("recording frame skipped", zap.Error(err))
	}
}

// Text returns the trimmed text of the element, waiting for it to exist.
func (b *Base) Text(ctx context.Context, ref locator.Ref) (string, error) {
	var text string
	err := b.Await(ctx, b.Until(ref.String()+" present", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, b.target(ref), ref)
		if err != nil {
			return false, err
		}
		t, err := el.Text(ctx)
		if err != nil {
			return false, err
		}
		text = strings.TrimSpace(t)
		return true, nil
	}, wait.Timeout(b.opts.Timeouts.Action)))
	return text, err
}

// Texts returns the trimmed texts of every current match, without waiting.
func (b *Base) Texts(ctx context.Context, ref locator.Ref) ([]string, error) {
	els, err := locator.ResolveAll(ctx, b.target(ref), ref)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("read text of %s: %w", ref, err)
		}
		out = append(out, strings.TrimSpace(t))
	}
	return out, nil
}

// Attribute reads an attribute of the first match, without waiting.
func (b *Base) Attribute(ctx context.Context, ref locator.Ref, name string) (string, bool, error) {
	el, err := locator.Resolve(ctx, b.target(ref), ref)
	if err != nil {
		return "", false, err
	}
	return el.Attribute(ctx, name)
}

// Count returns the current number of matches.
func (b *Base) Count(ctx context.Context, ref locator.Ref) (int, error) {
	return locator.Count(ctx, b.target(ref), ref)
}

// IsVisible reports whether the first match exists and is visible.
func (b *Base) IsVisible(ctx context.Context, ref locator.Ref) (bool, error) {
	el, err := locator.Resolve(ctx, b.target(ref), ref)
	if errors.Is(err, locator.ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return el.Visible(ctx)
}

// IsChecked reports whether the first match is checked, without waiting.
func (b *Base) IsChecked(ctx context.Context, ref locator.Ref) (bool, error) {
	_, on, err := b.Attribute(ctx, ref, "checked")
	return on, err
}

// IsEnabled reports whether the first match exists and is not disabled.
func (b *Base) IsEnabled(ctx context.Context, ref locator.Ref) (bool, error) {
	_, off, err := b.Attribute(ctx, ref, "disabled")
	if errors.Is(err, locator.ErrNoMatch) {
		return false, nil
	}
	return err == nil && !off, err
}

// Screenshot writes a PNG of the surface to path, and a thumbnail next to
// it when thumbnails are enabled.
func (b *Base) Screenshot(ctx context.Context, path string) error {
	data, err := b.surface.Page().Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot %s: %w", b.surface, err)
	}
	if err := artifact.WriteFile(path, data); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	if b.opts.ThumbnailWidth > 0 {
		thumb, err := artifact.Thumbnail(data, b.opts.ThumbnailWidth)
		if err != nil {
			b.logger.Warn("thumbnail skipped", zap.String("path", path), zap.Error(err))
			return nil
		}
		if err := artifact.WriteFile(artifact.ThumbnailPath(path), thumb); err != nil {
			return fmt.Errorf("write thumbnail: %w", err)
		}
	}
	return nil
}
