package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	fserrors "github.com/wippyai/wasi-vfs/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wasifs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
preopens:
  - /srv/a
  - /srv/b
repository: bolt:///var/lib/wasifs.db
namespace: tenant-1
log:
  level: debug
  development: true
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Config{
		Preopens:   []string{"/srv/a", "/srv/b"},
		Repository: "bolt:///var/lib/wasifs.db",
		Namespace:  "tenant-1",
		Log:        LogConfig{Level: "debug", Development: true},
		Metrics:    MetricsConfig{Enabled: true},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "preopens: [/srv]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Repository != "mem://wasifs" {
		t.Errorf("Repository = %q", cfg.Repository)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Namespace == "" {
		t.Error("Namespace should default to a generated id")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "preopens: [/srv]\nrepository: mem://file\n")
	t.Setenv("WASIFS_REPOSITORY", "mem://env")
	t.Setenv("WASIFS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Repository != "mem://env" || cfg.Log.Level != "warn" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("WASIFS_PREOPENS", "/a,/b")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"/a", "/b"}, cfg.Preopens); diff != "" {
		t.Errorf("preopens mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, &fserrors.Error{Phase: fserrors.PhaseConfig, Kind: fserrors.KindNotFound}) {
		t.Errorf("missing file error = %v", err)
	}

	_, err = Load(writeConfig(t, "repository: mem://x\n"))
	if !errors.Is(err, &fserrors.Error{Phase: fserrors.PhaseConfig, Kind: fserrors.KindInvalidInput}) {
		t.Errorf("no preopens error = %v", err)
	}

	_, err = Load(writeConfig(t, "preopens: [\n"))
	if err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestUsage(t *testing.T) {
	if !strings.Contains(Usage(), "WASIFS_PREOPENS") {
		t.Error("usage should list WASIFS_PREOPENS")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WASIFS_PREOPENS", "")

	cfg, err := Load("", func(c *Config) {
		c.Preopens = []string{"/flag"}
		c.Metrics.File = "metrics.prom"
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"/flag"}, cfg.Preopens); diff != "" {
		t.Errorf("preopens mismatch (-want +got):\n%s", diff)
	}
	if cfg.Metrics.File != "metrics.prom" {
		t.Errorf("Metrics.File = %q", cfg.Metrics.File)
	}
}
