package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the tracker configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	GitHub GitHubConfig `yaml:"github"`
	Cache  CacheConfig  `yaml:"cache"`
	Crawl  CrawlConfig  `yaml:"crawl"`
	Prefs  PrefsConfig  `yaml:"prefs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is the externally visible base URL used in feed
	// channel links. When empty, the request's Host header is used.
	PublicURL string `yaml:"public_url"`
}

// GitHubConfig holds upstream API settings.
type GitHubConfig struct {
	// Token is the privileged bearer credential. Optional; without it
	// upstream calls are unauthenticated and background cache refresh
	// is disabled.
	Token      string `yaml:"token"`
	APIBaseURL string `yaml:"api_base_url"`
	// DefaultOrg scopes searches when the caller names no repositories.
	DefaultOrg string `yaml:"default_org"`
	UserAgent  string `yaml:"user_agent"`
}

// CacheConfig holds the edge-cache freshness windows, in seconds.
type CacheConfig struct {
	// FreshSeconds is emitted with freshly computed responses and
	// bounds how long an entry lives in the store.
	FreshSeconds int `yaml:"fresh_seconds"`
	// HitSeconds is emitted with cache hits and lightweight responses.
	HitSeconds int `yaml:"hit_seconds"`
	// FilesSeconds applies to the changed-files endpoint.
	FilesSeconds int `yaml:"files_seconds"`
}

// CrawlConfig holds pages-feed crawl settings.
type CrawlConfig struct {
	UserAgent string `yaml:"user_agent"`
	// PageLimit caps the limit parameter of one crawl.
	PageLimit int `yaml:"page_limit"`
}

// PrefsConfig holds the preference-store location.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8787,
		},
		GitHub: GitHubConfig{
			Token:      os.Getenv("GITHUB_TOKEN"),
			APIBaseURL: "https://api.github.com",
			DefaultOrg: "MicrosoftDocs",
			UserAgent:  "docstrack-edge",
		},
		Cache: CacheConfig{
			FreshSeconds: 21600,
			HitSeconds:   600,
			FilesSeconds: 3600,
		},
		Crawl: CrawlConfig{
			UserAgent: "docstrack-pages",
			PageLimit: 200,
		},
		Prefs: PrefsConfig{
			Path: "prefs.json",
		},
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GitHub.APIBaseURL == "" {
		return fmt.Errorf("github.api_base_url must not be empty")
	}
	if c.Cache.FreshSeconds <= 0 || c.Cache.HitSeconds <= 0 || c.Cache.FilesSeconds <= 0 {
		return fmt.Errorf("cache windows must be positive")
	}
	if c.Cache.HitSeconds > c.Cache.FreshSeconds {
		return fmt.Errorf("cache.hit_seconds must not exceed cache.fresh_seconds")
	}
	if c.Crawl.PageLimit <= 0 {
		return fmt.Errorf("crawl.page_limit must be positive")
	}
	return nil
}
