package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type GradeConfig struct {
	APlus float64 `yaml:"a_plus" default:"1.75" validate:"gt=0"`
	A     float64 `yaml:"a" default:"1.5" validate:"gt=0"`
	BPlus float64 `yaml:"b_plus" default:"1.25" validate:"gt=0"`
}

func (g GradeConfig) check() error {
	if g.APlus < g.A || g.A < g.BPlus {
		return fmt.Errorf("grades must satisfy a_plus >= a >= b_plus, got %.2f/%.2f/%.2f", g.APlus, g.A, g.BPlus)
	}
	return nil
}

// StrategyConfig overrides one strategy. Zero values fall back to the
// global settings and the strategy's built-in screener URLs.
type StrategyConfig struct {
	Enabled        *bool        `yaml:"enabled"`
	URLs           []string     `yaml:"urls" validate:"dive,url"`
	TargetMultiple float64      `yaml:"target_multiple" validate:"gte=0"`
	Grades         *GradeConfig `yaml:"grades"`
}

type Config struct {
	Timezone           string  `yaml:"timezone" default:"America/New_York"`
	LookbackDays       int     `yaml:"lookback_days" default:"200" validate:"gte=1"`
	SignalHistoryDays  int     `yaml:"signal_history_days" default:"10" validate:"gte=1"`
	FeaturesWindowDays int     `yaml:"features_window_days" default:"40" validate:"gte=1"`
	GenerateSignals    bool    `yaml:"generate_signals" default:"true"`
	MaxUnionTickers    int     `yaml:"max_union_tickers" validate:"gte=0"`
	DataSource         string  `yaml:"data_source" default:"auto" validate:"oneof=auto stooq yahoo"`
	RSIPeriod          int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	MinR               float64 `yaml:"min_r" default:"1.25" validate:"gt=0"`
	TargetMultiple     float64 `yaml:"target_multiple" default:"1.25" validate:"gt=0"`

	Grades GradeConfig `yaml:"grades"`

	Finviz struct {
		ThrottleSeconds float64 `yaml:"throttle_seconds" default:"1.2" validate:"gte=0"`
		UserAgent       string  `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
		MaxPages        int     `yaml:"max_pages" default:"10" validate:"gte=1"`
		TimeoutSeconds  int     `yaml:"timeout_seconds" default:"20" validate:"gte=1"`
	} `yaml:"finviz"`

	Prices struct {
		ThrottleSeconds float64 `yaml:"throttle_seconds" default:"0.5" validate:"gte=0"`
		TimeoutSeconds  int     `yaml:"timeout_seconds" default:"20" validate:"gte=1"`
		StooqURL        string  `yaml:"stooq_url" default:"https://stooq.com/q/d/l/" validate:"url"`
		YahooURL        string  `yaml:"yahoo_url" default:"https://query1.finance.yahoo.com/v8/finance/chart/" validate:"url"`
	} `yaml:"prices"`

	Paths struct {
		DataDir    string `yaml:"data_dir" default:"data" validate:"required"`
		OutputsDir string `yaml:"outputs_dir" default:"outputs" validate:"required"`
		DocsDir    string `yaml:"docs_dir"`
		LogsDir    string `yaml:"logs_dir" default:"logs" validate:"required"`
	} `yaml:"paths"`

	Strategies map[string]StrategyConfig `yaml:"strategies" validate:"dive"`

	Schedule            string `yaml:"schedule"`
	MetricsFile         string `yaml:"metrics_file"`
	RunLogRetentionDays int    `yaml:"run_log_retention_days" default:"7" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if err := c.Grades.check(); err != nil {
		return err
	}
	if c.Grades.BPlus < c.MinR {
		return fmt.Errorf("grades.b_plus %.2f is below min_r %.2f", c.Grades.BPlus, c.MinR)
	}
	for name, sc := range c.Strategies {
		if sc.Grades != nil {
			if err := sc.Grades.check(); err != nil {
				return fmt.Errorf("strategies.%s: %w", name, err)
			}
		}
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule '%s': %w", c.Schedule, err)
		}
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	c, err := ParseConfig(nil)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) WatchlistDir() string { return filepath.Join(c.Paths.DataDir, "watchlists") }
func (c *Config) PricesFile() string   { return filepath.Join(c.Paths.DataDir, "prices.csv") }
func (c *Config) FetchLogFile() string { return filepath.Join(c.Paths.DataDir, "fetch.log") }
func (c *Config) RunLogDir() string    { return filepath.Join(c.Paths.LogsDir, "runs") }

func (c *Config) StrategyEnabled(name string) bool {
	sc, ok := c.Strategies[name]
	if !ok || sc.Enabled == nil {
		return true
	}
	return *sc.Enabled
}

// StrategyURLs returns the configured screener URLs for a strategy, or
// fallback when none are set.
func (c *Config) StrategyURLs(name string, fallback []string) []string {
	if sc, ok := c.Strategies[name]; ok && len(sc.URLs) > 0 {
		return sc.URLs
	}
	return fallback
}

func (c *Config) StrategyTargetMultiple(name string) float64 {
	if sc, ok := c.Strategies[name]; ok && sc.TargetMultiple > 0 {
		return sc.TargetMultiple
	}
	return c.TargetMultiple
}

func (c *Config) StrategyGrades(name string) GradeConfig {
	if sc, ok := c.Strategies[name]; ok && sc.Grades != nil {
		return *sc.Grades
	}
	return c.Grades
}

// EnsureDirectories creates every directory the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.WatchlistDir(), c.Paths.OutputsDir, c.Paths.LogsDir}
	if c.Paths.DocsDir != "" {
		dirs = append(dirs, c.Paths.DocsDir)
	}
	var errs []error
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}
