package common

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root application configuration, loaded from a single TOML
// file given on the command line. Environment (.env) loading is out of
// scope for the core (spec §1) — config always comes from this one file.
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Sources     SourcesConfig  `toml:"sources"`
	Crawler     CrawlerConfig  `toml:"crawler"`
	Storage     StorageConfig  `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig  `toml:"logging"`
}

// SourcesConfig locates the source registry CSV and rule files.
type SourcesConfig struct {
	CSVPath      string `toml:"csv_path"`
	SchemasDir   string `toml:"schemas_dir"`
}

// CrawlerConfig carries the CLI-overridable crawl defaults.
type CrawlerConfig struct {
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultQPS     float64 `toml:"default_qps"`
	Concurrency    int    `toml:"concurrency"`
	Limit          int    `toml:"limit"`
}

// StorageConfig locates the tiered-storage roots and the relational store.
type StorageConfig struct {
	BronzeRoot    string `toml:"bronze_root"`
	SilverRoot    string `toml:"silver_root"`
	GoldRoot      string `toml:"gold_root"`
	ManifestsRoot string `toml:"manifests_root"`
	QuarantineDir string `toml:"quarantine_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	CacheDir      string `toml:"cache_dir"`
	SQLitePath    string `toml:"sqlite_path"`
}

// SchedulerConfig carries the scheduler loop's job table.
type SchedulerConfig struct {
	IntervalSeconds int                  `toml:"interval_seconds"`
	Jobs            []SchedulerJobConfig `toml:"jobs"`
}

// SchedulerJobConfig is one entry of scheduler.jobs[] (spec §4.N).
type SchedulerJobConfig struct {
	SourceType string `toml:"source_type"`
	Cron       string `toml:"cron"`
	Limit      int    `toml:"limit"`
}

// LoggingConfig controls the arbor logger's verbosity.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// IsProduction reports whether test/localhost seed URLs should be rejected.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Defaults returns a Config with every field populated from the teacher's
// own convention of shipping sane zero-config defaults (common/defaults.go).
func Defaults() *Config {
	return &Config{
		Environment: "development",
		Sources: SourcesConfig{
			CSVPath:    "./config/sources.csv",
			SchemasDir: "./config/schemas",
		},
		Crawler: CrawlerConfig{
			UserAgent:      "listingcrawl/1.0 (+https://example.invalid/bot)",
			TimeoutSeconds: 30,
			DefaultQPS:     2.0,
			Concurrency:    3,
			Limit:          100,
		},
		Storage: StorageConfig{
			BronzeRoot:    "./data/bronze",
			SilverRoot:    "./data/silver",
			GoldRoot:      "./data/gold",
			ManifestsRoot: "./data/manifests",
			QuarantineDir: "./data/quarantine",
			CheckpointDir: "./data/checkpoints",
			CacheDir:      "./data/cache",
			SQLitePath:    "./data/events.db",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads and merges a TOML config file over the defaults. A
// missing file is not an error — the defaults are used as-is, matching the
// teacher's "zero-config works" posture.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: reading config %s: %v", ErrConfig, path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config %s: %v", ErrConfig, path, err)
	}

	return cfg, nil
}
