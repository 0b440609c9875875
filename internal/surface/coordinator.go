package surface

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
)

// SpawnKind names the event a spawn race waits for.
type SpawnKind string

const (
	SpawnPopup    SpawnKind = "popup"
	SpawnFrame    SpawnKind = "frame"
	SpawnDialog   SpawnKind = "dialog"
	SpawnDownload SpawnKind = "download"
)

// DefaultFrameDepth bounds FindFrame when the caller passes no depth.
const DefaultFrameDepth = 8

// Trigger is the user action expected to spawn something.
type Trigger func(ctx context.Context) error

// Options configures a Coordinator.
type Options struct {
	SpawnTimeout time.Duration
	// DownloadDir is where the engine stages downloads before they are
	// copied to the caller's path.
	DownloadDir string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Coordinator owns the Registry of one test and runs every operation that
// creates or tears down surfaces.
type Coordinator struct {
	reg     *Registry
	timeout time.Duration
	dlDir   string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCoordinator wraps reg.
func NewCoordinator(reg *Registry, opts Options) *Coordinator {
	if opts.SpawnTimeout <= 0 {
		opts.SpawnTimeout = 10 * time.Second
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = filepath.Join(os.TempDir(), "uiharness-downloads")
	}
	return &Coordinator{
		reg:     reg,
		timeout: opts.SpawnTimeout,
		dlDir:   opts.DownloadDir,
		logger:  observability.OrNop(opts.Logger).Named("surface"),
		metrics: opts.Metrics,
	}
}

// Registry returns the registry the coordinator owns.
func (c *Coordinator) Registry() *Registry { return c.reg }

// Root returns the top-level surface.
func (c *Coordinator) Root() *Surface { return c.reg.Root() }

// race arms the event listener, then runs trigger and the event wait
// concurrently. Engines may fire the event before the trigger returns (a
// dialog blocks the click that opened it), so the two never run in sequence.
func race[T any](ctx context.Context, timeout time.Duration, kind SpawnKind, arm func(context.Context) func() (T, error), trigger Trigger) (T, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(rctx)
	wait := arm(gctx)

	var result T
	var triggerErr error
	g.Go(func() error {
		if err := trigger(gctx); err != nil {
			triggerErr = err
			return fmt.Errorf("trigger %s: %w", kind, err)
		}
		return nil
	})
	g.Go(func() error {
		v, err := wait()
		if err != nil {
			return err
		}
		result = v
		return nil
	})

	err := g.Wait()
	if err == nil {
		return result, nil
	}
	if ctx.Err() == nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
		if triggerErr == nil || errors.Is(triggerErr, context.DeadlineExceeded) {
			return result, &SpawnTimeoutError{Kind: kind, Timeout: timeout}
		}
	}
	return result, err
}

// SpawnAndTrack runs trigger on from and returns the popup or frame it
// creates, registered as a child of from. A surface that never appears is
// reported as SpawnTimeoutError and not retried.
func (c *Coordinator) SpawnAndTrack(ctx context.Context, from *Surface, kind SpawnKind, trigger Trigger) (_ *Surface, err error) {
	ctx, span := observability.StartSpan(ctx, "surface.spawn", attribute.String("kind", string(kind)))
	defer func() {
		c.metrics.RecordSpawn(string(kind), err)
		observability.EndSpan(span, err)
	}()

	if err := from.CheckAttached(ctx); err != nil {
		return nil, err
	}

	var surfaceKind Kind
	var arm func(context.Context) func() (engine.Page, error)
	switch kind {
	case SpawnPopup:
		surfaceKind, arm = KindPopup, from.page.ExpectPopup
	case SpawnFrame:
		surfaceKind, arm = KindFrame, from.page.ExpectFrame
	default:
		return nil, fmt.Errorf("spawn kind %q does not create a surface", kind)
	}

	page, err := race(ctx, c.timeout, kind, arm, trigger)
	if err != nil {
		return nil, err
	}

	name, nerr := page.Name(ctx)
	if nerr != nil {
		c.logger.Debug("spawned surface has no readable name", zap.Error(nerr))
	}
	s := c.reg.track(surfaceKind, from, name, page)
	c.logger.Debug("surface spawned", zap.Stringer("surface", s), zap.Stringer("from", from))
	return s, nil
}

// FindFrame searches the frame tree under root breadth-first for a frame
// named name, descending at most maxDepth levels. Frames already visited
// are skipped, so self-referencing frame graphs terminate.
func (c *Coordinator) FindFrame(ctx context.Context, root *Surface, name string, maxDepth int) (*Surface, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultFrameDepth
	}
	if err := root.CheckAttached(ctx); err != nil {
		return nil, err
	}

	type node struct {
		s     *Surface
		depth int
	}
	queue := []node{{s: root}}
	visited := map[string]bool{root.page.ID(): true}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.depth >= maxDepth {
			continue
		}

		children, err := n.s.page.ChildFrames(ctx)
		if err != nil {
			if IsDetached(err) {
				return nil, &DetachedError{Surface: n.s.String(), Cause: err}
			}
			return nil, fmt.Errorf("list frames of %s: %w", n.s, err)
		}
		for _, child := range children {
			if visited[child.ID()] {
				continue
			}
			visited[child.ID()] = true

			childName, err := child.Name(ctx)
			if err != nil {
				c.logger.Debug("skipping unreadable frame", zap.Stringer("parent", n.s), zap.Error(err))
				continue
			}
			cs := c.reg.track(KindFrame, n.s, childName, child)
			if childName == name {
				return cs, nil
			}
			queue = append(queue, node{s: cs, depth: n.depth + 1})
		}
	}
	return nil, &FrameNotFoundError{Name: name, MaxDepth: maxDepth}
}

// CloseSurface closes one surface. Frames are only marked closed; their
// document goes away with the parent.
func (c *Coordinator) CloseSurface(ctx context.Context, s *Surface) error {
	if s.Closed() {
		return nil
	}
	s.closed.Store(true)
	if s.kind == KindFrame {
		return nil
	}
	if err := s.page.Close(ctx); err != nil && !IsDetached(err) {
		return fmt.Errorf("close %s: %w", s, err)
	}
	return nil
}

// Close tears down every tracked surface, newest first.
func (c *Coordinator) Close(ctx context.Context) error {
	var errs []error
	for _, s := range c.reg.all() {
		if err := c.CloseSurface(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
