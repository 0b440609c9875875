package suite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/uiharness/internal/artifact"
	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/fixture"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
	"github.com/v0xg/uiharness/internal/recording"
)

// teardownTimeout bounds failure screenshots, recordings and fixture
// teardown, which run after the case context may have expired.
const teardownTimeout = 10 * time.Second

// Options configures a Runner.
type Options struct {
	Config *config.Config
	// Engine names the browser implementation in the report.
	Engine  string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Runner executes cases in parallel, each in its own fixture session.
type Runner struct {
	browser engine.Browser
	cfg     *config.Config
	engine  string
	run     *artifact.Run
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRunner creates the run's artifact directory under the configured
// artifacts dir.
func NewRunner(browser engine.Browser, opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("runner needs a config")
	}
	run, err := artifact.NewRun(opts.Config.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	return &Runner{
		browser: browser,
		cfg:     opts.Config,
		engine:  opts.Engine,
		run:     run,
		logger:  observability.OrNop(opts.Logger).Named("runner").With(zap.String("run", run.ID)),
		metrics: opts.Metrics,
	}, nil
}

// Run returns the artifact tree of this run.
func (r *Runner) Run() *artifact.Run { return r.run }

type job struct {
	suite string
	c     Case
}

// Execute runs every case of suites, at most runner.workers at a time. A
// failing case never stops the others. The report is written to
// <run>/report.json and the metrics textfile, when configured, next to it.
func (r *Runner) Execute(ctx context.Context, suites []Suite) (*Report, error) {
	var jobs []job
	for _, s := range suites {
		for _, c := range s.Cases {
			jobs = append(jobs, job{suite: s.Name, c: c})
		}
	}

	report := &Report{RunID: r.run.ID, Engine: r.engine, StartedAt: time.Now()}
	results := make([]Result, len(jobs))
	r.logger.Info("run started", zap.Int("cases", len(jobs)), zap.Int("workers", r.cfg.Runner.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Runner.Workers, 1))
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = r.runCase(gctx, j.suite, j.c)
			return nil
		})
	}
	_ = g.Wait()

	report.finish(results)
	r.logger.Info("run finished",
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.Duration()))

	var errs []error
	if err := report.WriteJSON(r.run.Path("report.json")); err != nil {
		errs = append(errs, err)
	}
	if r.metrics != nil {
		path := r.cfg.Artifacts.MetricsFile
		if path == "" {
			path = r.run.Path("metrics.prom")
		}
		if err := r.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	return report, errors.Join(errs...)
}

func (r *Runner) runCase(ctx context.Context, suiteName string, c Case) (res Result) {
	start := time.Now()
	res = Result{Suite: suiteName, ID: c.ID, Name: c.Name}
	logger := r.logger.With(zap.String("suite", suiteName), zap.String("case", c.Title()))

	ctx, span := observability.StartSpan(ctx, "suite.case",
		attribute.String("suite", suiteName),
		attribute.String("case", c.Title()))
	var caseErr error
	defer func() {
		res.DurationMS = time.Since(start).Milliseconds()
		res.Status = StatusPassed
		if caseErr != nil {
			res.Status = StatusFailed
			res.Error = caseErr.Error()
		}
		r.metrics.RecordCase(suiteName, string(res.Status), time.Since(start))
		observability.EndSpan(span, caseErr)
		if caseErr != nil {
			logger.Error("case failed", zap.Error(caseErr), zap.Int64("ms", res.DurationMS))
		} else {
			logger.Info("case passed", zap.Int64("ms", res.DurationMS))
		}
	}()

	dir, err := r.run.CaseDir(suiteName, c.Title())
	if err != nil {
		caseErr = err
		return res
	}
	res.Dir = dir

	var rec *recording.Recorder
	if r.cfg.Artifacts.Record {
		rec = recording.NewRecorder(0)
	}

	var cctx context.Context
	var cancel context.CancelFunc
	if r.cfg.Runner.CaseTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, r.cfg.Runner.CaseTimeout)
	} else {
		cctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	sess, err := fixture.Open(cctx, r.browser, fixture.Options{
		Timeouts:       r.cfg.Timeouts,
		Targets:        r.cfg.Targets,
		DownloadDir:    filepath.Join(dir, "downloads"),
		ThumbnailWidth: r.cfg.Artifacts.ThumbnailWidth,
		Logger:         logger,
		Metrics:        r.metrics,
		Recorder:       rec,
	})
	if err != nil {
		caseErr = err
		return res
	}

	caseErr = call(cctx, c, &Env{Session: sess, Dir: dir, Logger: logger})

	// Cleanup gets its own budget: the case context may be what failed.
	tctx, tcancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer tcancel()
	if caseErr != nil {
		shot := filepath.Join(dir, "failure.png")
		if err := sess.Screenshot(tctx, shot); err != nil {
			logger.Warn("failure screenshot", zap.Error(err))
		} else {
			res.Screenshot = shot
		}
	}
	if rec.Len() > 0 {
		gifPath := filepath.Join(dir, "recording.gif")
		if _, err := rec.Save(gifPath, recording.Options{MaxWidth: 800}); err != nil {
			logger.Warn("save recording", zap.Error(err))
		} else {
			res.Recording = gifPath
		}
	}
	if err := sess.Close(tctx); err != nil {
		// Logged by the fixture; kept apart from the case outcome.
		res.TeardownError = err.Error()
	}
	return res
}

// call runs the case, turning a panic into a failure.
func call(ctx context.Context, c Case, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return c.Run(ctx, env)
}
