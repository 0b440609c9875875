// Package wait polls UI state until a predicate holds, with an optional
// single recovery action between a primary and a shorter second window.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
	"github.com/v0xg/uiharness/internal/surface"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultPoll    = 100 * time.Millisecond
)

// ErrTimeout matches every TimeoutError.
var ErrTimeout = errors.New("wait timed out")

// TimeoutError reports a predicate that never held, including after the
// recovery action when one was configured.
type TimeoutError struct {
	Description string
	Elapsed     time.Duration
	Recovered   bool
	// LastErr is the last error the predicate returned, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.Description)
	if e.Recovered {
		msg += " (after one recovery)"
	}
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Predicate reports whether the awaited state holds. Errors other than
// detachment are remembered and polling continues.
type Predicate func(ctx context.Context) (bool, error)

// Recovery runs once after the primary window expires.
type Recovery func(ctx context.Context) error

// Spec describes one wait. Build it with Until; it is immutable afterwards.
type Spec struct {
	desc            string
	pred            Predicate
	timeout         time.Duration
	poll            time.Duration
	recovery        Recovery
	recoveryTimeout time.Duration
	surface         *surface.Surface
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// Option configures a Spec.
type Option func(*Spec)

// Timeout sets the primary window.
func Timeout(d time.Duration) Option {
	return func(s *Spec) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Poll sets the interval between predicate evaluations.
func Poll(d time.Duration) Option {
	return func(s *Spec) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithRecovery runs r once when the primary window expires and then polls
// for window more. A zero window means half the primary timeout.
func WithRecovery(r Recovery, window time.Duration) Option {
	return func(s *Spec) {
		s.recovery = r
		s.recoveryTimeout = window
	}
}

// On ties the wait to a surface; the wait fails fast once it detaches.
func On(sf *surface.Surface) Option {
	return func(s *Spec) { s.surface = sf }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Spec) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Spec) { s.metrics = m }
}

// Until builds a Spec waiting for pred, described by desc in errors.
func Until(desc string, pred Predicate, opts ...Option) Spec {
	s := Spec{
		desc:    desc,
		pred:    pred,
		timeout: DefaultTimeout,
		poll:    DefaultPoll,
	}
	return s.With(opts...)
}

func (s Spec) Description() string            { return s.desc }
func (s Spec) Timeout() time.Duration         { return s.timeout }
func (s Spec) PollInterval() time.Duration    { return s.poll }
func (s Spec) HasRecovery() bool              { return s.recovery != nil }
func (s Spec) RecoveryTimeout() time.Duration { return s.recoveryTimeout }
func (s Spec) Surface() *surface.Surface      { return s.surface }

// With returns a copy of s with opts applied.
func (s Spec) With(opts ...Option) Spec {
	for _, opt := range opts {
		opt(&s)
	}
	if s.recovery != nil && s.recoveryTimeout <= 0 {
		s.recoveryTimeout = s.timeout / 2
	}
	if s.poll > s.timeout {
		s.poll = s.timeout
	}
	s.logger = observability.OrNop(s.logger)
	return s
}

// For is Await(ctx, Until(desc, pred, opts...)).
func For(ctx context.Context, desc string, pred Predicate, opts ...Option) error {
	return Await(ctx, Until(desc, pred, opts...))
}

// Await polls spec's predicate until it holds. On timeout it runs the
// recovery, if any, exactly once and polls a second, shorter window.
func Await(ctx context.Context, spec Spec) (err error) {
	if spec.pred == nil {
		return fmt.Errorf("wait for %s: nil predicate", spec.desc)
	}
	ctx, span := observability.StartSpan(ctx, "wait.await",
		attribute.String("description", spec.desc),
		attribute.Int64("timeout_ms", spec.timeout.Milliseconds()))
	start := time.Now()
	outcome := "satisfied"
	defer func() {
		spec.metrics.RecordWait(outcome, time.Since(start))
		observability.EndSpan(span, err)
	}()

	ok, lastErr, err := spec.poll1(ctx, spec.timeout)
	if err != nil {
		outcome = classify(err)
		return err
	}
	if ok {
		return nil
	}

	if spec.recovery == nil {
		outcome = "timeout"
		return &TimeoutError{Description: spec.desc, Elapsed: time.Since(start), LastErr: lastErr}
	}

	spec.logger.Info("wait timed out, running recovery",
		zap.String("wait", spec.desc),
		zap.Duration("elapsed", time.Since(start)),
		zap.Duration("window", spec.recoveryTimeout))
	spec.metrics.RecordRecovery()
	if rerr := spec.recovery(ctx); rerr != nil {
		if surface.IsDetached(rerr) {
			outcome = "detached"
			return spec.detached(rerr)
		}
		// A failed recovery still gets its window; the predicate decides.
		spec.logger.Warn("recovery failed", zap.String("wait", spec.desc), zap.Error(rerr))
		lastErr = rerr
	}

	ok, lastErr2, err := spec.poll1(ctx, spec.recoveryTimeout)
	if err != nil {
		outcome = classify(err)
		return err
	}
	if ok {
		outcome = "recovered"
		return nil
	}
	if lastErr2 != nil {
		lastErr = lastErr2
	}
	outcome = "timeout"
	return &TimeoutError{Description: spec.desc, Elapsed: time.Since(start), Recovered: true, LastErr: lastErr}
}

// poll1 runs one polling window. It returns a non-nil err only for
// conditions that end the wait early.
func (s Spec) poll1(ctx context.Context, window time.Duration) (ok bool, lastErr error, err error) {
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if s.surface != nil {
			if derr := s.surface.CheckAttached(ctx); derr != nil {
				return false, lastErr, derr
			}
		}

		held, perr := s.pred(wctx)
		switch {
		case perr == nil && held:
			return true, nil, nil
		case perr != nil && surface.IsDetached(perr):
			return false, lastErr, s.detached(perr)
		case perr != nil && !errors.Is(perr, context.DeadlineExceeded):
			lastErr = perr
		}

		select {
		case <-ctx.Done():
			return false, lastErr, fmt.Errorf("wait for %s: %w", s.desc, ctx.Err())
		case <-wctx.Done():
			if ctx.Err() != nil {
				return false, lastErr, fmt.Errorf("wait for %s: %w", s.desc, ctx.Err())
			}
			return false, lastErr, nil
		case <-ticker.C:
		}
	}
}

func (s Spec) detached(cause error) error {
	var de *surface.DetachedError
	if errors.As(cause, &de) {
		return cause
	}
	name := "page"
	if s.surface != nil {
		name = s.surface.String()
	}
	return &surface.DetachedError{Surface: name, Cause: cause}
}

func classify(err error) string {
	if surface.IsDetached(err) {
		return "detached"
	}
	return "canceled"
}

// ReloadRecovery reloads sf and waits for the network to go idle.
func ReloadRecovery(sf *surface.Surface) Recovery {
	return func(ctx context.Context) error {
		if err := sf.Page().Reload(ctx); err != nil {
			return fmt.Errorf("reload %s: %w", sf, err)
		}
		if err := sf.Page().WaitIdle(ctx); err != nil {
			return fmt.Errorf("wait idle after reload: %w", err)
		}
		return nil
	}
}
