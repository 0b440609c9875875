package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/wait"
)

// Until builds a wait bound to the current surface with the session's
// timeouts, logger and metrics. opts override the defaults.
func (b *Base) Until(desc string, pred wait.Predicate, opts ...wait.Option) wait.Spec {
	base := []wait.Option{
		wait.Timeout(b.opts.Timeouts.Wait),
		wait.Poll(b.opts.Timeouts.Poll),
		wait.On(b.surface),
		wait.WithLogger(b.logger),
		wait.WithMetrics(b.opts.Metrics),
	}
	return wait.Until(desc, pred, append(base, opts...)...)
}

// Await runs spec.
func (b *Base) Await(ctx context.Context, spec wait.Spec) error {
	return wait.Await(ctx, spec)
}

// ReloadRecovery is the standard recovery for the current surface: reload
// and wait for network idle, then poll a second window.
func (b *Base) ReloadRecovery() wait.Option {
	return wait.WithRecovery(wait.ReloadRecovery(b.surface), b.opts.Timeouts.RecoveryWindow())
}

// WaitVisible waits until ref matches a visible element.
func (b *Base) WaitVisible(ctx context.Context, ref locator.Ref, opts ...wait.Option) error {
	return b.Await(ctx, b.Until(ref.String()+" visible", func(ctx context.Context) (bool, error) {
		return b.IsVisible(ctx, ref)
	}, opts...))
}

// WaitHidden waits until ref matches nothing visible.
func (b *Base) WaitHidden(ctx context.Context, ref locator.Ref, opts ...wait.Option) error {
	return b.Await(ctx, b.Until(ref.String()+" hidden", func(ctx context.Context) (bool, error) {
		visible, err := b.IsVisible(ctx, ref)
		return !visible, err
	}, opts...))
}

// WaitCount waits until ref matches exactly n elements.
func (b *Base) WaitCount(ctx context.Context, ref locator.Ref, n int, opts ...wait.Option) error {
	return b.Await(ctx, b.Until(fmt.Sprintf("%s count == %d", ref, n), func(ctx context.Context) (bool, error) {
		got, err := b.Count(ctx, ref)
		return got == n, err
	}, opts...))
}

// WaitText waits until the first match's trimmed text equals text.
func (b *Base) WaitText(ctx context.Context, ref locator.Ref, text string, opts ...wait.Option) error {
	var last string
	err := b.Await(ctx, b.Until(fmt.Sprintf("%s text == %q", ref, text), func(ctx context.Context) (bool, error) {
		els, err := locator.ResolveAll(ctx, b.target(ref), ref)
		if err != nil || len(els) == 0 {
			return false, err
		}
		t, err := els[0].Text(ctx)
		if err != nil {
			return false, err
		}
		last = strings.TrimSpace(t)
		return last == text, nil
	}, opts...))
	var te *wait.TimeoutError
	if errors.As(err, &te) && te.LastErr == nil && last != "" {
		te.LastErr = fmt.Errorf("last text %q", last)
	}
	return err
}

// WaitURL waits until the surface URL contains fragment.
func (b *Base) WaitURL(ctx context.Context, fragment string, opts ...wait.Option) error {
	var last string
	err := b.Await(ctx, b.Until(fmt.Sprintf("url contains %q", fragment), func(ctx context.Context) (bool, error) {
		u, err := b.surface.Page().URL(ctx)
		if err != nil {
			return false, err
		}
		last = u
		return strings.Contains(u, fragment), nil
	}, append([]wait.Option{wait.Timeout(b.opts.Timeouts.Navigation)}, opts...)...))
	var te *wait.TimeoutError
	if errors.As(err, &te) && te.LastErr == nil && last != "" {
		te.LastErr = fmt.Errorf("last url %q", last)
	}
	return err
}
