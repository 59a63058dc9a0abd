// Package config loads duplifind's YAML configuration file into the
// option structs the pipeline, cache, action executor, scheduler, and API
// server are built from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duplifind/duplifind/internal/action"
	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/hasher"
	"github.com/duplifind/duplifind/internal/pipeline"
)

// Config holds everything loaded from config.yaml.
type Config struct {
	Scan     ScanConfig   `yaml:"scan"`
	Cache    CacheConfig  `yaml:"cache"`
	Action   ActionConfig `yaml:"action"`
	DataDir  string       `yaml:"data_dir"`
	Schedule string       `yaml:"schedule"`
	LogLevel string       `yaml:"log_level"`
	HTTPAddr string       `yaml:"http_addr"`
}

// ScanConfig mirrors pipeline.Config's YAML-facing fields.
type ScanConfig struct {
	Roots   []string `yaml:"roots"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// MinSize is a pointer so yaml.v3 leaves it nil when the key is
	// absent, distinguishing that from an explicit "min_size: 0" (which
	// decodes to a non-nil pointer to 0, admitting empty files).
	MinSize        *int64 `yaml:"min_size"`
	FollowSymlinks bool   `yaml:"follow_symlinks"`
	HashAlgorithm  string `yaml:"hash_algorithm"`
	SampleSize     int64  `yaml:"sample_size"`
	WalkWorkers    int    `yaml:"walk_workers"`
	QuickWorkers   int    `yaml:"quick_workers"`
	FullWorkers    int    `yaml:"full_workers"`
}

// CacheConfig mirrors cache.Options's YAML-facing fields.
type CacheConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	MaxEntries   int    `yaml:"max_entries"`
	MaxAgeDays   int    `yaml:"max_age_days"`
	ReadPoolSize int    `yaml:"read_pool_size"`
}

// ActionConfig mirrors action.Options's YAML-facing fields.
type ActionConfig struct {
	TrashDir  string `yaml:"trash_dir"`
	AuditDir  string `yaml:"audit_dir"`
	Collision string `yaml:"collision_policy"`
}

// applyDefaults fills zero/empty fields with sensible defaults, mirroring
// the defaulting each downstream package already applies to its own
// Options/Config struct so a Config loaded here never needs its own
// separate source of truth for a default value.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "/data/duplifind"
	}
	if c.Schedule == "" {
		c.Schedule = "0 2 * * 0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Scan.HashAlgorithm == "" {
		c.Scan.HashAlgorithm = hasher.AlgoSHA256
	}
	if c.Scan.SampleSize == 0 {
		c.Scan.SampleSize = hasher.DefaultSampleSize
	}
	if c.Cache.Path == "" {
		c.Cache.Path = c.DataDir + "/cache.db"
	}
	if c.Action.TrashDir == "" {
		c.Action.TrashDir = c.DataDir + "/trash"
	}
	if c.Action.AuditDir == "" {
		c.Action.AuditDir = c.DataDir + "/audit"
	}
	if c.Action.Collision == "" {
		c.Action.Collision = string(action.CollisionRename)
	}
	// Cache defaults to enabled unless a config file explicitly disabled
	// it; since yaml.v3 leaves an absent bool at its zero value (false),
	// Load only applies this default when the key was never present.
}

// Load reads and parses the YAML config file at path. If the file does
// not exist, Load returns a default Config so the server can start
// without a mounted config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := defaultConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	cfg := defaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// defaultConfig returns a Config with CacheEnabled true and every other
// default applied, used both as Load's no-file fallback and as the base
// a present file's YAML is decoded on top of (so an absent "enabled: false"
// key never silently disables the cache).
func defaultConfig() Config {
	var cfg Config
	cfg.Cache.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// PipelineConfig builds a pipeline.Config from the loaded scan settings,
// falling back to pipeline's own defaults for anything left at zero.
func (c *Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Roots = c.Scan.Roots
	cfg.Include = c.Scan.Include
	cfg.Exclude = c.Scan.Exclude
	cfg.MinSize = c.Scan.MinSize
	cfg.FollowSymlinks = c.Scan.FollowSymlinks
	cfg.HashAlgorithm = c.Scan.HashAlgorithm
	cfg.SampleSize = c.Scan.SampleSize
	cfg.CacheEnabled = c.Cache.Enabled
	if c.Scan.WalkWorkers > 0 {
		cfg.WalkWorkers = c.Scan.WalkWorkers
	}
	if c.Scan.QuickWorkers > 0 {
		cfg.QuickWorkers = c.Scan.QuickWorkers
	}
	if c.Scan.FullWorkers > 0 {
		cfg.FullWorkers = c.Scan.FullWorkers
	}
	return cfg
}

// CacheOptions builds a cache.Options from the loaded cache settings.
func (c *Config) CacheOptions() cache.Options {
	opts := cache.Options{
		Path:         c.Cache.Path,
		HashAlgo:     c.Scan.HashAlgorithm,
		MaxEntries:   c.Cache.MaxEntries,
		ReadPoolSize: c.Cache.ReadPoolSize,
	}
	if c.Cache.MaxAgeDays > 0 {
		opts.MaxAge = time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
	}
	return opts
}

// ActionOptions builds the fixed parts of an action.Options (Kind and
// Permanent are request-specific and left zero here).
func (c *Config) ActionOptions() action.Options {
	return action.Options{
		TrashDir:  c.Action.TrashDir,
		Collision: action.CollisionPolicy(c.Action.Collision),
	}
}
