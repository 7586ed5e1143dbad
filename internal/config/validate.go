package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError aggregates every field-level failure found during a
// single Validate call so a config mutation can be rejected with one
// response instead of failing fast on the first bad field.
type ValidationError struct {
	Items []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Items, "; ")
}

type validator struct {
	items []string
}

func (v *validator) URL(field, value string) *validator {
	if value == "" {
		v.items = append(v.items, field+": required")
		return v
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		v.items = append(v.items, fmt.Sprintf("%s: not a valid absolute URL: %q", field, value))
	}
	return v
}

func (v *validator) OptionalURL(field, value string) *validator {
	if value == "" {
		return v
	}
	return v.URL(field, value)
}

func (v *validator) Range(field string, value, min, max int) *validator {
	if value < min || value > max {
		v.items = append(v.items, fmt.Sprintf("%s: %d out of range [%d,%d]", field, value, min, max))
	}
	return v
}

func (v *validator) NotEmpty(field, value string) *validator {
	if strings.TrimSpace(value) == "" {
		v.items = append(v.items, field+": required")
	}
	return v
}

func (v *validator) err() error {
	if len(v.items) == 0 {
		return nil
	}
	return &ValidationError{Items: v.items}
}

// Validate checks an AppConfig for internal consistency. It never mutates
// cfg: callers keep the previous config in force on error, per the error
// handling design (a rejected mutation changes nothing).
func Validate(cfg AppConfig) error {
	v := &validator{}
	v.NotEmpty("instance_dir", cfg.InstanceDir)
	v.URL("ume_address", cfg.UMEAddress)
	v.URL("external_origin", cfg.ExternalOrigin)
	v.Range("pool_max_sessions", cfg.PoolMaxSessions, 1, 64)
	v.Range("http_timeout_seconds", cfg.HTTPTimeoutSeconds, 1, 120)
	v.Range("logo_fetch_timeout_seconds", cfg.LogoFetchTimeoutSeconds, 1, 60)
	v.OptionalURL("remote_settings_url", cfg.RemoteSettingsURL)
	v.OptionalURL("tvg_logo_external_url", cfg.TVGLogoExternalURL)

	for i, s := range cfg.Scraper.Sources {
		prefix := fmt.Sprintf("scraper.sources[%d]", i)
		v.URL(prefix+".url", s.URL)
		switch s.Type {
		case "html", "iptv", "api":
		default:
			v.items = append(v.items, prefix+".type: must be one of html|iptv|api, got "+s.Type)
		}
	}
	for i, s := range cfg.EPGs.Sources {
		prefix := fmt.Sprintf("epgs.sources[%d]", i)
		v.URL(prefix+".url", s.URL)
		switch s.Format {
		case "xml", "xml.gz":
		default:
			v.items = append(v.items, prefix+".format: must be xml or xml.gz, got "+s.Format)
		}
	}
	return v.err()
}
