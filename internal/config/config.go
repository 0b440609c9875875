// Package config loads harness settings through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. UIHARNESS_BROWSER_HEADLESS.
const EnvPrefix = "UIHARNESS"

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Targets   TargetsConfig   `mapstructure:"targets"`
}

// LoggerConfig holds zap settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	LogFile    string `mapstructure:"log_file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"` // stdout when empty
}

// BrowserConfig holds settings for the launched Chromium.
type BrowserConfig struct {
	Headless   bool   `mapstructure:"headless"`
	Bin        string `mapstructure:"bin"`
	ProfileDir string `mapstructure:"profile_dir"` // Chrome/Chromium profile directory
	RemoteURL  string `mapstructure:"remote_url"`  // connect instead of launching
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	// PointerSteps animates the mouse before clicks; 0 disables it.
	PointerSteps int           `mapstructure:"pointer_steps"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// TimeoutConfig bounds every wait the harness performs.
type TimeoutConfig struct {
	Action     time.Duration `mapstructure:"action"`
	Wait       time.Duration `mapstructure:"wait"`
	Poll       time.Duration `mapstructure:"poll"`
	Recovery   time.Duration `mapstructure:"recovery"`
	Spawn      time.Duration `mapstructure:"spawn"`
	Navigation time.Duration `mapstructure:"navigation"`
}

// RunnerConfig controls suite execution.
type RunnerConfig struct {
	Workers     int           `mapstructure:"workers"`
	CaseTimeout time.Duration `mapstructure:"case_timeout"`
	Suites      []string      `mapstructure:"suites"`
}

// ArtifactsConfig controls where screenshots, downloads and reports go.
type ArtifactsConfig struct {
	Dir            string `mapstructure:"dir"`
	Record         bool   `mapstructure:"record"`
	ThumbnailWidth uint   `mapstructure:"thumbnail_width"`
	MetricsFile    string `mapstructure:"metrics_file"`
}

// TargetsConfig holds the base URLs of the applications under test.
type TargetsConfig struct {
	SauceDemo string `mapstructure:"saucedemo"`
	HerokuApp string `mapstructure:"herokuapp"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("tracing.enabled", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.idle_timeout", 5*time.Second)

	v.SetDefault("timeouts.action", 10*time.Second)
	v.SetDefault("timeouts.wait", 5*time.Second)
	v.SetDefault("timeouts.poll", 100*time.Millisecond)
	v.SetDefault("timeouts.recovery", 0)
	v.SetDefault("timeouts.spawn", 10*time.Second)
	v.SetDefault("timeouts.navigation", 30*time.Second)

	v.SetDefault("runner.workers", 4)
	v.SetDefault("runner.case_timeout", 2*time.Minute)

	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.thumbnail_width", 320)

	v.SetDefault("targets.saucedemo", "https://www.saucedemo.com")
	v.SetDefault("targets.herokuapp", "https://the-internet.herokuapp.com")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and unmarshals v into a Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants viper cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Runner.Workers < 1 {
		errs = append(errs, fmt.Errorf("runner.workers must be at least 1, got %d", c.Runner.Workers))
	}
	if c.Timeouts.Poll <= 0 {
		errs = append(errs, errors.New("timeouts.poll must be positive"))
	}
	if c.Timeouts.Wait < c.Timeouts.Poll {
		errs = append(errs, fmt.Errorf("timeouts.wait (%s) must not be shorter than timeouts.poll (%s)", c.Timeouts.Wait, c.Timeouts.Poll))
	}
	if c.Timeouts.Action <= 0 || c.Timeouts.Spawn <= 0 || c.Timeouts.Navigation <= 0 {
		errs = append(errs, errors.New("timeouts.action, timeouts.spawn and timeouts.navigation must be positive"))
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, errors.New("browser viewport must be positive"))
	}
	return errors.Join(errs...)
}

// RecoveryWindow is the second polling window used after a recovery action.
func (t TimeoutConfig) RecoveryWindow() time.Duration {
	if t.Recovery > 0 {
		return t.Recovery
	}
	return t.Wait / 2
}
