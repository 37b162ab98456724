// Package config loads depot configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anvil-platform/depot/internal/download"
	"github.com/anvil-platform/depot/internal/relocation"
	"github.com/anvil-platform/depot/internal/repository"
	"github.com/anvil-platform/depot/internal/resolver"
)

// Environment variables that override file settings.
const (
	EnvCacheDir     = "DEPOT_CACHE_DIR"
	EnvRepositories = "DEPOT_REPOSITORIES"
	EnvMaxDepth     = "DEPOT_MAX_DEPTH"
)

// Config holds all depot configuration.
type Config struct {
	CacheDir     string             `yaml:"cacheDir"`
	Repositories []RepositoryConfig `yaml:"repositories"`
	Resolution   ResolutionConfig   `yaml:"resolution"`
	HTTP         HTTPConfig         `yaml:"http"`
	// MetadataTTL is a duration string; "0s" or negative disables metadata caching.
	MetadataTTL string           `yaml:"metadataTTL"`
	Relocation  RelocationConfig `yaml:"relocation"`
}

// RepositoryConfig is one remote repository, in priority order.
type RepositoryConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// ResolutionConfig tunes graph discovery.
type ResolutionConfig struct {
	MaxDepth            int      `yaml:"maxDepth"`
	MaxIterations       int      `yaml:"maxIterations"`
	MaxParentDepth      int      `yaml:"maxParentDepth"`
	IncludeOptional     bool     `yaml:"includeOptional"`
	IncludeTest         bool     `yaml:"includeTest"`
	ExcludeGroups       []string `yaml:"excludeGroups"`
	ExcludeArtifacts    []string `yaml:"excludeArtifacts"`
	DownloadConcurrency int      `yaml:"downloadConcurrency"`
}

// HTTPConfig configures repository transfers.
type HTTPConfig struct {
	ConnectTimeout string `yaml:"connectTimeout"`
	ReadTimeout    string `yaml:"readTimeout"`
	UserAgent      string `yaml:"userAgent"`
}

// RelocationConfig configures namespace relocation. Relocation is off when
// Rules is empty.
type RelocationConfig struct {
	Command []string          `yaml:"command"`
	Rules   []relocation.Rule `yaml:"rules"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheDir: defaultCacheDir(),
		Repositories: []RepositoryConfig{
			{ID: "central", URL: repository.MavenCentral},
		},
		Resolution: ResolutionConfig{
			MaxIterations:       resolver.DefaultMaxIterations,
			MaxParentDepth:      resolver.DefaultMaxParentDepth,
			DownloadConcurrency: 1,
		},
		HTTP: HTTPConfig{
			ConnectTimeout: download.DefaultConnectTimeout.String(),
			ReadTimeout:    download.DefaultReadTimeout.String(),
			UserAgent:      download.DefaultUserAgent,
		},
		MetadataTTL: download.DefaultMetadataTTL.String(),
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".depot", "cache")
	}
	return filepath.Join(home, ".depot", "cache")
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.CacheDir = dir
	}
	if raw := os.Getenv(EnvRepositories); raw != "" {
		c.Repositories = nil
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Repositories = append(c.Repositories, RepositoryConfig{URL: u})
			}
		}
	}
	if raw := os.Getenv(EnvMaxDepth); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxDepth, raw, err)
		}
		c.Resolution.MaxDepth = n
	}
	return nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cacheDir is required")
	}
	if len(c.Repositories) == 0 {
		return fmt.Errorf("at least one repository is required")
	}
	for i, r := range c.Repositories {
		if strings.TrimSpace(r.URL) == "" {
			return fmt.Errorf("repositories[%d]: url is required", i)
		}
	}
	if c.Resolution.MaxDepth < 0 {
		return fmt.Errorf("resolution.maxDepth must not be negative")
	}
	for name, raw := range map[string]string{
		"http.connectTimeout": c.HTTP.ConnectTimeout,
		"http.readTimeout":    c.HTTP.ReadTimeout,
		"metadataTTL":         c.MetadataTTL,
	} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for i, r := range c.Relocation.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("relocation.rules[%d]: %w", i, err)
		}
	}
	if len(c.Relocation.Rules) > 0 && len(c.Relocation.Command) == 0 {
		return fmt.Errorf("relocation.command is required when rules are set")
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// GetConnectTimeout returns the connect timeout as a duration.
func (c *Config) GetConnectTimeout() time.Duration {
	d, _ := parseDuration(c.HTTP.ConnectTimeout)
	return d
}

// GetReadTimeout returns the read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, _ := parseDuration(c.HTTP.ReadTimeout)
	return d
}

// GetMetadataTTL returns the metadata cache lifetime. Zero is mapped to a
// negative value so an explicit "0s" disables caching instead of selecting
// the downloader default.
func (c *Config) GetMetadataTTL() time.Duration {
	if c.MetadataTTL == "" {
		return 0
	}
	d, _ := parseDuration(c.MetadataTTL)
	if d == 0 {
		return -1
	}
	return d
}

// Registry builds the repository registry, local cache first.
func (c *Config) Registry() *repository.Registry {
	remotes := make([]repository.Repository, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		remotes = append(remotes, repository.Repository{ID: r.ID, URL: r.URL})
	}
	return repository.NewRegistry(c.CacheDir, remotes...)
}

// DownloadOptions maps the HTTP settings to downloader options.
func (c *Config) DownloadOptions() download.Options {
	return download.Options{
		ConnectTimeout: c.GetConnectTimeout(),
		ReadTimeout:    c.GetReadTimeout(),
		UserAgent:      c.HTTP.UserAgent,
		MetadataTTL:    c.GetMetadataTTL(),
	}
}

// ResolverOptions maps the resolution settings to engine options. The
// relocator is left unset; see NewEngine.
func (c *Config) ResolverOptions() resolver.Options {
	r := c.Resolution
	return resolver.Options{
		MaxDepth:            r.MaxDepth,
		MaxIterations:       r.MaxIterations,
		MaxParentDepth:      r.MaxParentDepth,
		IncludeOptional:     r.IncludeOptional,
		IncludeTest:         r.IncludeTest,
		ExcludeGroups:       append([]string(nil), r.ExcludeGroups...),
		ExcludeArtifacts:    append([]string(nil), r.ExcludeArtifacts...),
		DownloadConcurrency: r.DownloadConcurrency,
	}
}

// RelocationHandler returns the relocation handler, or nil when no rules are configured.
func (c *Config) RelocationHandler() (*relocation.Handler, error) {
	if len(c.Relocation.Rules) == 0 {
		return nil, nil
	}
	return relocation.NewHandler(c.CacheDir, relocation.ExecTool{Command: c.Relocation.Command}, c.Relocation.Rules)
}

// NewEngine wires a resolution engine from the configuration.
func (c *Config) NewEngine() (*resolver.Engine, error) {
	opts := c.ResolverOptions()
	h, err := c.RelocationHandler()
	if err != nil {
		return nil, err
	}
	if h != nil {
		opts.Relocator = h
	}
	return resolver.NewEngine(download.New(c.Registry(), c.DownloadOptions()), opts)
}
