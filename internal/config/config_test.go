package config_test

import (
	"os"
	"testing"

	"github.com/duplifind/duplifind/internal/config"
)

func TestLoadDefaultsApplied(t *testing.T) {
	f, err := os.CreateTemp("", "duplifind-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString("scan:\n  roots:\n    - /tmp/test\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := config.Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule == "" {
		t.Error("expected default schedule to be set")
	}
	if cfg.HTTPAddr == "" {
		t.Error("expected default http_addr to be set")
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache to default to enabled")
	}
	if cfg.Scan.HashAlgorithm == "" {
		t.Error("expected default hash_algorithm to be set")
	}
	if len(cfg.Scan.Roots) != 1 || cfg.Scan.Roots[0] != "/tmp/test" {
		t.Errorf("got roots=%v, want [/tmp/test]", cfg.Scan.Roots)
	}
}

func TestLoadMissingFile(t *testing.T) {
	// A missing config file is not an error — Load returns defaults so the
	// server can start without a mounted config file (bare Docker run).
	cfg, err := config.Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.HTTPAddr == "" {
		t.Error("expected default http_addr to be set")
	}
	if cfg.Schedule == "" {
		t.Error("expected default schedule to be set")
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache to default to enabled")
	}
}

func TestLoadCacheCanBeExplicitlyDisabled(t *testing.T) {
	f, err := os.CreateTemp("", "duplifind-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString("cache:\n  enabled: false\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := config.Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("expected explicit enabled: false to stick")
	}
}

func TestPipelineConfigCarriesScanSettings(t *testing.T) {
	var cfg config.Config
	cfg.Scan.Roots = []string{"/a", "/b"}
	minSize := int64(1024)
	cfg.Scan.MinSize = &minSize
	cfg.Cache.Enabled = true

	pc := cfg.PipelineConfig()
	if len(pc.Roots) != 2 {
		t.Errorf("got %d roots, want 2", len(pc.Roots))
	}
	if pc.MinSize == nil || *pc.MinSize != 1024 {
		t.Errorf("got MinSize=%v, want 1024", pc.MinSize)
	}
	if !pc.CacheEnabled {
		t.Error("expected CacheEnabled to carry through")
	}
}

func TestPipelineConfigMinSizeZeroSurvivesExplicitly(t *testing.T) {
	f, err := os.CreateTemp("", "duplifind-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString("scan:\n  roots:\n    - /tmp/test\n  min_size: 0\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := config.Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pc := cfg.PipelineConfig()
	if pc.MinSize == nil || *pc.MinSize != 0 {
		t.Errorf("got MinSize=%v, want explicit 0", pc.MinSize)
	}
}
