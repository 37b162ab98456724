package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/anvil-platform/depot/internal/relocation"
	"github.com/anvil-platform/depot/internal/repository"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Repositories) != 1 || cfg.Repositories[0].URL != repository.MavenCentral {
		t.Fatalf("repositories = %+v", cfg.Repositories)
	}
	if cfg.GetConnectTimeout() != 5*time.Second || cfg.GetReadTimeout() != 20*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.GetConnectTimeout(), cfg.GetReadTimeout())
	}
	if cfg.Resolution.MaxIterations != 50 || cfg.Resolution.MaxParentDepth != 10 {
		t.Fatalf("resolution = %+v", cfg.Resolution)
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := writeConfig(t, `
cacheDir: /var/cache/depot
repositories:
  - id: internal
    url: https://repo.example.com/maven2
  - id: central
    url: https://repo1.maven.org/maven2/
resolution:
  maxDepth: 3
  excludeGroups: [org.slf4j]
  excludeArtifacts: ["*:*-tests"]
  downloadConcurrency: 4
http:
  readTimeout: 45s
metadataTTL: 1h
relocation:
  command: [java, -jar, rewriter.jar]
  rules:
    - pattern: "com{}google"
      relocated: "shaded{}google"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheDir != "/var/cache/depot" {
		t.Fatalf("cacheDir = %q", cfg.CacheDir)
	}
	opts := cfg.ResolverOptions()
	if opts.MaxDepth != 3 || opts.DownloadConcurrency != 4 || opts.MaxIterations != 50 {
		t.Fatalf("resolver options = %+v", opts)
	}
	if diff := cmp.Diff([]string{"org.slf4j"}, opts.ExcludeGroups); diff != "" {
		t.Fatalf("excludeGroups mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetReadTimeout() != 45*time.Second || cfg.GetMetadataTTL() != time.Hour {
		t.Fatalf("durations = %v / %v", cfg.GetReadTimeout(), cfg.GetMetadataTTL())
	}

	remotes := cfg.Registry().Remotes()
	if len(remotes) != 2 || remotes[0].ID != "internal" {
		t.Fatalf("remotes = %+v", remotes)
	}

	h, err := cfg.RelocationHandler()
	if err != nil || h == nil {
		t.Fatalf("RelocationHandler = %v, %v", h, err)
	}
	if diff := cmp.Diff([]relocation.Rule{{Pattern: "com.google", Relocated: "shaded.google"}}, h.Rules()); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
	if _, err := cfg.NewEngine(); err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/depot-env")
	t.Setenv(EnvRepositories, "https://a.example.com/, https://b.example.com/")
	t.Setenv(EnvMaxDepth, "2")

	cfg, err := Load(writeConfig(t, "cacheDir: /ignored\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheDir != "/tmp/depot-env" || cfg.Resolution.MaxDepth != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	want := []RepositoryConfig{{URL: "https://a.example.com/"}, {URL: "https://b.example.com/"}}
	if diff := cmp.Diff(want, cfg.Repositories); diff != "" {
		t.Fatalf("repositories mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_InvalidMaxDepthEnv(t *testing.T) {
	t.Setenv(EnvMaxDepth, "deep")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no repositories":   func(c *Config) { c.Repositories = nil },
		"empty url":         func(c *Config) { c.Repositories = []RepositoryConfig{{ID: "x"}} },
		"bad timeout":       func(c *Config) { c.HTTP.ReadTimeout = "soon" },
		"negative depth":    func(c *Config) { c.Resolution.MaxDepth = -1 },
		"rules sans tool":   func(c *Config) { c.Relocation.Rules = []relocation.Rule{{Pattern: "a", Relocated: "b"}} },
		"incomplete rule":   func(c *Config) { c.Relocation.Command = []string{"x"}; c.Relocation.Rules = []relocation.Rule{{Pattern: "a"}} },
		"missing cache dir": func(c *Config) { c.CacheDir = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "depot.yaml")
	cfg := DefaultConfig()
	cfg.CacheDir = "/srv/depot"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("config mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestGetMetadataTTL_ZeroDisables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetadataTTL = "0s"
	if got := cfg.GetMetadataTTL(); got >= 0 {
		t.Fatalf("ttl = %v, want negative", got)
	}
}
