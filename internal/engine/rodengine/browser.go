// Package rodengine implements engine.Browser on top of go-rod and a
// launched (or remote) Chromium.
package rodengine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/observability"
)

// Options configures the browser.
type Options struct {
	Headless bool
	// Bin is the Chromium executable; empty means look it up.
	Bin string
	// ProfileDir reuses a Chrome/Chromium profile, e.g. for authenticated
	// sessions. Contexts then share that profile instead of being
	// incognito. Close the browser using the profile first.
	ProfileDir string
	// RemoteURL connects to a running browser instead of launching one.
	RemoteURL     string
	Width, Height int
	// PointerSteps animates the mouse to its target in that many eased
	// steps before clicks and hovers, so recordings show the movement.
	PointerSteps int
	// IdleTimeout caps WaitIdle so long-polling pages cannot hang it.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Browser is a connected Chromium.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *zap.Logger
}

var _ engine.Browser = (*Browser)(nil)

// Launch starts Chromium, or connects to opts.RemoteURL.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}
	logger := observability.OrNop(opts.Logger).Named("rod")

	u := opts.RemoteURL
	var l *launcher.Launcher
	if u == "" {
		bin := opts.Bin
		if bin == "" {
			bin, _ = launcher.LookPath()
		}
		l = launcher.New().Context(ctx).Headless(opts.Headless)
		if bin != "" {
			l = l.Bin(bin)
		}
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}
		var err error
		if u, err = l.Launch(); err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		logger.Info("browser launched", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return &Browser{rod: b, launcher: l, opts: opts, logger: logger}, nil
}

// NewContext opens an incognito context, or the shared profile context
// when a profile directory is configured.
func (b *Browser) NewContext(ctx context.Context) (engine.Context, error) {
	rb := b.rod
	if b.opts.ProfileDir == "" {
		inc, err := b.rod.Context(ctx).Incognito()
		if err != nil {
			return nil, fmt.Errorf("incognito context: %w", wrap(err))
		}
		rb = inc.Context(context.Background())
	}
	return &Context{browser: b, rod: rb, incognito: b.opts.ProfileDir == ""}, nil
}

// Close disconnects and stops a launched browser. A configured profile is
// left on disk.
func (b *Browser) Close() error {
	err := b.rod.Close()
	if b.launcher != nil {
		if b.opts.ProfileDir == "" {
			b.launcher.Cleanup()
		} else {
			b.launcher.Kill()
		}
	}
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// Context is one browser context.
type Context struct {
	browser   *Browser
	rod       *rod.Browser
	incognito bool
}

var _ engine.Context = (*Context)(nil)

// NewPage opens a blank page sized to the configured viewport.
func (c *Context) NewPage(ctx context.Context) (engine.Page, error) {
	rp, err := c.rod.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("new page: %w", wrap(err))
	}
	if err := rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.browser.opts.Width,
		Height:            c.browser.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", wrap(err))
	}
	return c.wrapPage(rp.Context(context.Background()), false), nil
}

func (c *Context) wrapPage(rp *rod.Page, frame bool) *Page {
	return &Page{ctx: c, rod: rp, frame: frame, logger: c.browser.logger}
}

// Close closes the incognito context and its pages. The shared profile
// context is only disconnected from.
func (c *Context) Close() error {
	if !c.incognito {
		return nil
	}
	if err := c.rod.Close(); err != nil {
		return fmt.Errorf("close browser context: %w", wrap(err))
	}
	return nil
}

// EnsureChromium returns the path of a usable Chromium. With download set,
// a missing browser is fetched into rod's cache directory.
func EnsureChromium(ctx context.Context, download bool) (string, error) {
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	lb := launcher.NewBrowser()
	lb.Context = ctx
	if !download {
		if err := lb.Validate(); err != nil {
			return "", fmt.Errorf("no browser found (run with --install): %w", err)
		}
		return lb.BinPath(), nil
	}
	path, err := lb.Get()
	if err != nil {
		return "", fmt.Errorf("download browser: %w", err)
	}
	return path, nil
}
