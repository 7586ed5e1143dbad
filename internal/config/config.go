// Package config loads and validates the gateway's AppConfig. Two loaders
// are supported: LoadEnv, for the env-var-only deployment style, and
// LoadFile, for a YAML document; LoadFile always applies an env overlay on
// top so individual knobs can still be pinned in a container manifest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ScraperConfig and EPGConfig are the two sections the Remote-Settings
// Fetcher is permitted to overwrite wholesale.
type ScraperConfig struct {
	Sources         []SourceConfig `yaml:"sources" json:"sources"`
	IntervalSeconds int            `yaml:"interval_seconds" json:"interval_seconds"`
}

type SourceConfig struct {
	Type             string            `yaml:"type" json:"type"` // html|iptv|api
	Name             string            `yaml:"name" json:"name"`
	URL              string            `yaml:"url" json:"url"`
	TargetClass      string            `yaml:"target_class,omitempty" json:"target_class,omitempty"`
	AlwaysExclude    []string          `yaml:"always_exclude,omitempty" json:"always_exclude,omitempty"`
	AlwaysInclude    []string          `yaml:"always_include,omitempty" json:"always_include,omitempty"`
	Exclude          []string          `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Include          []string          `yaml:"include,omitempty" json:"include,omitempty"`
	RegexPostprocess []string          `yaml:"regex_postprocessing,omitempty" json:"regex_postprocessing,omitempty"`
	TVGIDOverrides   map[string]string `yaml:"tvg_id_overrides,omitempty" json:"tvg_id_overrides,omitempty"`
}

type EPGConfig struct {
	Sources        []EPGSourceConfig `yaml:"sources" json:"sources"`
	RefreshSeconds int               `yaml:"refresh_seconds" json:"refresh_seconds"`
	GeneratorName  string            `yaml:"generator_name" json:"generator_name"`
}

type EPGSourceConfig struct {
	URL            string            `yaml:"url" json:"url"`
	Format         string            `yaml:"format" json:"format"` // xml|xml.gz
	TVGIDOverrides map[string]string `yaml:"tvg_id_overrides,omitempty" json:"tvg_id_overrides,omitempty"`
}

// AppConfig is the full, persisted configuration document.
type AppConfig struct {
	ListenAddr     string `yaml:"listen_addr" json:"listen_addr"`
	ExternalOrigin string `yaml:"external_origin" json:"external_origin"`
	InstanceDir    string `yaml:"instance_dir" json:"instance_dir"`

	UMEAddress string `yaml:"ume_address" json:"ume_address"`

	PoolMaxSessions int `yaml:"pool_max_sessions" json:"pool_max_sessions"`

	HTTPTimeoutSeconds      int `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`
	LogoFetchTimeoutSeconds int `yaml:"logo_fetch_timeout_seconds" json:"logo_fetch_timeout_seconds"`

	ScrapeCacheTTLSeconds     int `yaml:"scrape_cache_ttl_seconds" json:"scrape_cache_ttl_seconds"`
	ScrapeCacheTTLHTMLSeconds int `yaml:"scrape_cache_ttl_html_seconds" json:"scrape_cache_ttl_html_seconds"`

	RemoteSettingsURL             string `yaml:"remote_settings_url,omitempty" json:"remote_settings_url,omitempty"`
	RemoteSettingsIntervalSeconds int    `yaml:"remote_settings_interval_seconds" json:"remote_settings_interval_seconds"`

	AdminToken string `yaml:"admin_token" json:"-"`

	TVGLogoExternalURL string `yaml:"tvg_logo_external_url,omitempty" json:"tvg_logo_external_url,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogDev   bool   `yaml:"log_dev" json:"log_dev"`

	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`
	EPGs    EPGConfig     `yaml:"epgs" json:"epgs"`

	// TitleOverrides maps a content id to an admin-assigned display title,
	// applied in place of the scraped title in the IPTV playlist and the
	// player_api live-stream list. The EPG document is not rewritten.
	TitleOverrides map[string]string `yaml:"title_overrides,omitempty" json:"title_overrides,omitempty"`
}

// Default returns the zero-risk baseline, matching the teacher's style of a
// fully-populated default struct that env/file overlays then adjust.
func Default() AppConfig {
	return AppConfig{
		ListenAddr:                    ":8080",
		ExternalOrigin:                "http://localhost:8080",
		InstanceDir:                   "./instance",
		UMEAddress:                    "http://127.0.0.1:6878",
		PoolMaxSessions:               4,
		HTTPTimeoutSeconds:            10,
		LogoFetchTimeoutSeconds:       5,
		ScrapeCacheTTLSeconds:         2 * 60 * 60,
		ScrapeCacheTTLHTMLSeconds:     60 * 60,
		RemoteSettingsIntervalSeconds: 24 * 60 * 60,
		LogLevel:                      "info",
	}
}

// LoadEnv builds a Config purely from environment variables, matching the
// deployment style of a single container with no mounted file.
func LoadEnv() (AppConfig, error) {
	cfg := Default()
	cfg.ListenAddr = getEnv("GATEWAY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.ExternalOrigin = strings.TrimRight(getEnv("GATEWAY_EXTERNAL_ORIGIN", cfg.ExternalOrigin), "/")
	cfg.InstanceDir = getEnv("GATEWAY_INSTANCE_DIR", cfg.InstanceDir)
	cfg.UMEAddress = strings.TrimRight(getEnv("GATEWAY_UME_ADDRESS", cfg.UMEAddress), "/")
	cfg.PoolMaxSessions = getEnvInt("GATEWAY_POOL_MAX_SESSIONS", cfg.PoolMaxSessions)
	cfg.HTTPTimeoutSeconds = getEnvInt("GATEWAY_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.LogoFetchTimeoutSeconds = getEnvInt("GATEWAY_LOGO_TIMEOUT_SECONDS", cfg.LogoFetchTimeoutSeconds)
	cfg.ScrapeCacheTTLSeconds = getEnvInt("GATEWAY_SCRAPE_CACHE_TTL_SECONDS", cfg.ScrapeCacheTTLSeconds)
	cfg.ScrapeCacheTTLHTMLSeconds = getEnvInt("GATEWAY_SCRAPE_CACHE_TTL_HTML_SECONDS", cfg.ScrapeCacheTTLHTMLSeconds)
	cfg.RemoteSettingsURL = getEnv("GATEWAY_REMOTE_SETTINGS_URL", cfg.RemoteSettingsURL)
	cfg.RemoteSettingsIntervalSeconds = getEnvInt("GATEWAY_REMOTE_SETTINGS_INTERVAL_SECONDS", cfg.RemoteSettingsIntervalSeconds)
	cfg.AdminToken = getEnv("GATEWAY_ADMIN_TOKEN", cfg.AdminToken)
	cfg.TVGLogoExternalURL = getEnv("GATEWAY_TVG_LOGO_EXTERNAL_URL", cfg.TVGLogoExternalURL)
	cfg.LogLevel = getEnv("GATEWAY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDev = getEnvBool("GATEWAY_LOG_DEV", cfg.LogDev)
	return cfg, nil
}

// LoadFile reads a YAML document at path, then overlays any GATEWAY_* env
// vars set in the process environment on top of it.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *AppConfig) {
	cfg.ListenAddr = getEnv("GATEWAY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.ExternalOrigin = strings.TrimRight(getEnv("GATEWAY_EXTERNAL_ORIGIN", cfg.ExternalOrigin), "/")
	cfg.InstanceDir = getEnv("GATEWAY_INSTANCE_DIR", cfg.InstanceDir)
	cfg.UMEAddress = strings.TrimRight(getEnv("GATEWAY_UME_ADDRESS", cfg.UMEAddress), "/")
	cfg.PoolMaxSessions = getEnvInt("GATEWAY_POOL_MAX_SESSIONS", cfg.PoolMaxSessions)
	cfg.HTTPTimeoutSeconds = getEnvInt("GATEWAY_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.LogoFetchTimeoutSeconds = getEnvInt("GATEWAY_LOGO_TIMEOUT_SECONDS", cfg.LogoFetchTimeoutSeconds)
	cfg.ScrapeCacheTTLSeconds = getEnvInt("GATEWAY_SCRAPE_CACHE_TTL_SECONDS", cfg.ScrapeCacheTTLSeconds)
	cfg.ScrapeCacheTTLHTMLSeconds = getEnvInt("GATEWAY_SCRAPE_CACHE_TTL_HTML_SECONDS", cfg.ScrapeCacheTTLHTMLSeconds)
	cfg.RemoteSettingsURL = getEnv("GATEWAY_REMOTE_SETTINGS_URL", cfg.RemoteSettingsURL)
	cfg.RemoteSettingsIntervalSeconds = getEnvInt("GATEWAY_REMOTE_SETTINGS_INTERVAL_SECONDS", cfg.RemoteSettingsIntervalSeconds)
	cfg.AdminToken = getEnv("GATEWAY_ADMIN_TOKEN", cfg.AdminToken)
	cfg.TVGLogoExternalURL = getEnv("GATEWAY_TVG_LOGO_EXTERNAL_URL", cfg.TVGLogoExternalURL)
	cfg.LogLevel = getEnv("GATEWAY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDev = getEnvBool("GATEWAY_LOG_DEV", cfg.LogDev)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (c AppConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c AppConfig) LogoFetchTimeout() time.Duration {
	return time.Duration(c.LogoFetchTimeoutSeconds) * time.Second
}

func (c AppConfig) ScrapeCacheTTL(sourceType string) time.Duration {
	if sourceType == "html" {
		return time.Duration(c.ScrapeCacheTTLHTMLSeconds) * time.Second
	}
	return time.Duration(c.ScrapeCacheTTLSeconds) * time.Second
}

func (c AppConfig) RemoteSettingsInterval() time.Duration {
	return time.Duration(c.RemoteSettingsIntervalSeconds) * time.Second
}
