// Package fixture composes what one test case needs: an isolated browser
// context, the surface registry and coordinator bound to its first page,
// and the page objects of both target applications.
package fixture

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/pages/herokuapp"
	"github.com/v0xg/uiharness/internal/pages/saucedemo"
	"github.com/v0xg/uiharness/internal/recording"
	"github.com/v0xg/uiharness/internal/surface"
)

// Options configures a Session.
type Options struct {
	Timeouts config.TimeoutConfig
	Targets  config.TargetsConfig
	// DownloadDir stages downloads; it should be unique per case.
	DownloadDir    string
	ThumbnailWidth uint
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	// Recorder, when set, captures a frame after every page action.
	Recorder *recording.Recorder
}

// Session is the per-case fixture. It is not safe for concurrent use; each
// case gets its own.
type Session struct {
	bctx   engine.Context
	coord  *surface.Coordinator
	base   *page.Base
	opts   Options
	logger *zap.Logger
	closed bool
}

// Open creates an isolated context on browser and its root page.
func Open(ctx context.Context, browser engine.Browser, opts Options) (*Session, error) {
	logger := observability.OrNop(opts.Logger).Named("fixture")

	bctx, err := browser.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	root, err := bctx.NewPage(ctx)
	if err != nil {
		if cerr := bctx.Close(); cerr != nil {
			logger.Warn("close browser context", zap.Error(cerr))
		}
		return nil, fmt.Errorf("new page: %w", err)
	}

	reg := surface.NewRegistry(root)
	coord := surface.NewCoordinator(reg, surface.Options{
		SpawnTimeout: opts.Timeouts.Spawn,
		DownloadDir:  opts.DownloadDir,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	base := page.New(coord, coord.Root(), page.Options{
		Timeouts:       opts.Timeouts,
		ThumbnailWidth: opts.ThumbnailWidth,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
		Recorder:       opts.Recorder,
	})
	logger.Debug("session opened", zap.Stringer("root", coord.Root()))
	return &Session{bctx: bctx, coord: coord, base: base, opts: opts, logger: logger}, nil
}

func (s *Session) Base() *page.Base                  { return s.base }
func (s *Session) Coordinator() *surface.Coordinator { return s.coord }
func (s *Session) Root() *surface.Surface            { return s.coord.Root() }
func (s *Session) Recorder() *recording.Recorder     { return s.opts.Recorder }

// SauceDemo returns the login page object, the entry to the store.
func (s *Session) SauceDemo() *saucedemo.Login {
	return saucedemo.NewLogin(s.base, s.opts.Targets.SauceDemo)
}

// HerokuApp returns the the-internet page objects.
func (s *Session) HerokuApp() *herokuapp.Site {
	return herokuapp.New(s.base, s.opts.Targets.HerokuApp)
}

// Screenshot captures the root surface to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	return s.base.Screenshot(ctx, path)
}

// Close tears down every tracked surface and then the browser context.
// Errors are logged and returned joined; callers keep their own failure
// as the primary result. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.coord.Close(ctx); err != nil {
		s.logger.Warn("surface teardown failed", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.bctx.Close(); err != nil {
		s.logger.Warn("browser context teardown failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("close browser context: %w", err))
	}
	return errors.Join(errs...)
}

// Teardown closes s and reports teardown errors only when *errp is nil, so
// a test failure is never masked by a cleanup failure. Use it deferred:
//
//	defer fixture.Teardown(ctx, s, &err)
func Teardown(ctx context.Context, s *Session, errp *error) {
	cerr := s.Close(ctx)
	if cerr != nil && *errp == nil {
		*errp = fmt.Errorf("teardown: %w", cerr)
	}
}
