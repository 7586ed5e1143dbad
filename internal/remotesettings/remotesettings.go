// Package remotesettings implements the Remote-Settings Fetcher: on an
// interval (and whenever the configured URL changes) it GETs a JSON
// document parseable as the scraper/epgs sections of the application
// configuration, and, if it differs from what is currently loaded,
// replaces those sections and asks the Scrape Aggregator and EPG Merger
// to rebuild their source lists. The GET/decode shape is grounded on
// internal/epg's own source-refresh request (same context-scoped GET,
// status check, body read), substituting JSON decode for an XMLTV body.
package remotesettings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/config"
	"github.com/acerestreamer/gateway/internal/configstore"
	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/obslog"
)

// document is the wire shape this fetcher accepts: exactly the two
// sections spec.md §4.J permits a remote document to replace. Any other
// field in the remote body is ignored.
type document struct {
	Scraper config.ScraperConfig `json:"scraper"`
	EPGs    config.EPGConfig     `json:"epgs"`
}

// ConfigStore is the narrow view of internal/configstore this component
// needs.
type ConfigStore interface {
	Get() config.AppConfig
	Replace(next config.AppConfig, now func() time.Time) error
}

var _ ConfigStore = (*configstore.Store)(nil)

// Applier is called with the newly-replaced config whenever the remote
// document differs from the current one, so the caller can rebuild the
// Scrape Aggregator's and EPG Merger's source lists (internal/app owns
// the concrete scrape.FromConfig/epg.FromConfig calls, since only it
// knows the instance directory epg.FromConfig needs).
type Applier func(next config.AppConfig)

// Fetcher runs the Remote-Settings Fetcher long-lived task.
type Fetcher struct {
	store  ConfigStore
	apply  Applier
	client *http.Client

	log       zerolog.Logger
	now       func() time.Time
	lastURL   string
	lastBytes []byte
}

func New(store ConfigStore, apply Applier, base zerolog.Logger) *Fetcher {
	return &Fetcher{
		store:  store,
		apply:  apply,
		client: httpclient.Default(),
		log:    obslog.For(base, "remotesettings"),
		now:    time.Now,
	}
}

// Run wakes on interval (per the current config's
// RemoteSettingsIntervalSeconds, re-read every tick so an operator's
// admin-API edit of the interval takes effect without a restart) and
// whenever RemoteSettingsURL changes between ticks, fetches the document,
// and applies it if different. A URL change is noticed within one 10s
// poll. A fetch error is logged and skipped; it never tears down the loop.
func (f *Fetcher) Run(ctx context.Context) {
	f.runOnce(ctx)
	poll := time.NewTicker(10 * time.Second)
	defer poll.Stop()
	last := f.now()
	for {
		cfg := f.store.Get()
		interval := cfg.RemoteSettingsInterval()
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			urlChanged := cfg.RemoteSettingsURL != "" && cfg.RemoteSettingsURL != f.lastURL
			if urlChanged || f.now().Sub(last) >= interval {
				f.runOnce(ctx)
				last = f.now()
			}
		}
	}
}

func (f *Fetcher) runOnce(ctx context.Context) {
	cfg := f.store.Get()
	if cfg.RemoteSettingsURL == "" {
		return
	}
	urlChanged := cfg.RemoteSettingsURL != f.lastURL
	f.lastURL = cfg.RemoteSettingsURL

	body, err := f.fetch(ctx, cfg.RemoteSettingsURL)
	if err != nil {
		f.log.Warn().Err(err).Str("url", cfg.RemoteSettingsURL).Msg("remote settings fetch failed")
		return
	}
	if !urlChanged && reflect.DeepEqual(body, f.lastBytes) {
		return
	}
	f.lastBytes = body

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		f.log.Warn().Err(err).Str("url", cfg.RemoteSettingsURL).Msg("remote settings document is not valid JSON")
		return
	}

	next := cfg
	next.Scraper = doc.Scraper
	next.EPGs = doc.EPGs
	if len(next.Scraper.Sources) == 0 && len(cfg.Scraper.Sources) == 0 {
		next.Scraper.Sources = cfg.Scraper.Sources
	}
	if len(next.EPGs.Sources) == 0 && len(cfg.EPGs.Sources) == 0 {
		next.EPGs.Sources = cfg.EPGs.Sources
	}
	if reflect.DeepEqual(next.Scraper, cfg.Scraper) && reflect.DeepEqual(next.EPGs, cfg.EPGs) {
		return
	}

	if err := f.store.Replace(next, f.now); err != nil {
		f.log.Warn().Err(err).Str("url", cfg.RemoteSettingsURL).Msg("remote settings document rejected")
		return
	}
	f.log.Info().Str("url", cfg.RemoteSettingsURL).Msg("remote settings applied")
	if f.apply != nil {
		f.apply(next)
	}
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote settings %s: http status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
