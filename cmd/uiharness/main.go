package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/engine/memengine/sites"
	"github.com/v0xg/uiharness/internal/engine/rodengine"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/observability"
	"github.com/v0xg/uiharness/internal/suite"
)

var errFailed = errors.New("some cases failed")

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "uiharness",
		Short: "Run browser UI suites against SauceDemo and the-internet",
		Long: `uiharness drives a real Chromium through page objects and runs the
SauceDemo and the-internet suites in parallel, one isolated browser
context per case. Screenshots, downloads, recordings and a JSON report
land under the artifacts directory.

Settings come from --config, UIHARNESS_* environment variables and flags.

Example:
  uiharness run auth e2e --workers 2 --record`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "Config file (yaml, json or toml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("artifacts", "artifacts", "Artifacts directory")
	pf.Int("workers", 4, "Cases run in parallel")
	pf.Duration("case-timeout", 2*time.Minute, "Per-case timeout")
	pf.Bool("record", false, "Save a GIF recording of each case")
	pf.Bool("trace", false, "Export spans to stdout or tracing.file")
	a.bind(pf.Lookup("log-level"), "logger.level")
	a.bind(pf.Lookup("log-format"), "logger.format")
	a.bind(pf.Lookup("artifacts"), "artifacts.dir")
	a.bind(pf.Lookup("workers"), "runner.workers")
	a.bind(pf.Lookup("case-timeout"), "runner.case_timeout")
	a.bind(pf.Lookup("record"), "artifacts.record")
	a.bind(pf.Lookup("trace"), "tracing.enabled")

	root.AddCommand(a.runCmd(), a.validateCmd(), listCmd(), browsersCmd())
	return root
}

func (a *app) bind(f *pflag.Flag, key string) {
	_ = a.v.BindPFlag(key, f)
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Run suites in Chromium",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), args, "rod", func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Browser, error) {
				return rodengine.Launch(ctx, rodengine.Options{
					Headless:     cfg.Browser.Headless,
					Bin:          cfg.Browser.Bin,
					ProfileDir:   cfg.Browser.ProfileDir,
					RemoteURL:    cfg.Browser.RemoteURL,
					Width:        cfg.Browser.Width,
					Height:       cfg.Browser.Height,
					PointerSteps: cfg.Browser.PointerSteps,
					IdleTimeout:  cfg.Browser.IdleTimeout,
					Logger:       logger,
				})
			})
		},
	}
	f := cmd.Flags()
	f.Bool("headless", true, "Run Chromium without a window")
	f.String("profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	f.String("remote", "", "DevTools URL of a running browser")
	f.Int("width", 1280, "Viewport width")
	f.Int("height", 720, "Viewport height")
	f.Int("pointer-steps", 0, "Animate the mouse in this many steps before clicks")
	a.bind(f.Lookup("headless"), "browser.headless")
	a.bind(f.Lookup("profile"), "browser.profile_dir")
	a.bind(f.Lookup("remote"), "browser.remote_url")
	a.bind(f.Lookup("width"), "browser.width")
	a.bind(f.Lookup("height"), "browser.height")
	a.bind(f.Lookup("pointer-steps"), "browser.pointer_steps")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var latency time.Duration
	cmd := &cobra.Command{
		Use:   "validate [suite...]",
		Short: "Run suites against the in-memory simulated sites",
		Long: `validate runs the same suites against in-memory simulations of the
target sites. It needs no browser or network and exercises the page
objects, waits and teardown paths of the harness itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), args, "memory", func(_ context.Context, cfg *config.Config, logger *zap.Logger) (engine.Browser, error) {
				all, err := sites.All(sites.Options{SauceDemo: sites.SauceDemoOptions{
					Latency:     latency,
					GlitchDelay: 5 * latency,
				}})
				if err != nil {
					return nil, err
				}
				return memengine.New(memengine.Options{
					Width:  cfg.Browser.Width,
					Height: cfg.Browser.Height,
					Logger: logger,
				}, all...), nil
			})
		},
	}
	cmd.Flags().DurationVar(&latency, "latency", 50*time.Millisecond, "Simulated client-side render delay")
	return cmd
}

type launchFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Browser, error)

func (a *app) execute(ctx context.Context, names []string, engineName string, launch launchFunc) (err error) {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = cfg.Runner.Suites
	}
	suites, err := suite.Select(names)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	shutdown, err := observability.SetupTracing(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := shutdown(sctx); serr != nil {
			logger.Warn("tracing shutdown", zap.Error(serr))
		}
	}()

	browser, err := launch(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			logger.Warn("close browser", zap.Error(cerr))
		}
	}()

	runner, err := suite.NewRunner(browser, suite.Options{
		Config:  cfg,
		Engine:  engineName,
		Logger:  logger,
		Metrics: metrics.New(),
	})
	if err != nil {
		return err
	}
	report, err := runner.Execute(ctx, suites)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("artifacts: %s\n", runner.Run().Root)
	if !report.OK() {
		return errFailed
	}
	return nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List suites and their cases",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, s := range suite.All() {
				fmt.Fprintf(out, "%s (%d cases)  %s\n", s.Name, len(s.Cases), s.Description)
				for _, c := range s.Cases {
					fmt.Fprintf(out, "  %s\n", c.Title())
				}
			}
		},
	}
}

func browsersCmd() *cobra.Command {
	var install bool
	cmd := &cobra.Command{
		Use:   "browsers",
		Short: "Show the Chromium the run command will use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rodengine.EnsureChromium(cmd.Context(), install)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "Download Chromium when none is found")
	return cmd
}
