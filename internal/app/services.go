// Package app wires every component package into one running gateway:
// Services owns construction of each component and the five long-lived
// tasks the process runs side by side (Poolboy, Scrape Aggregator, EPG
// Merger, Remote-Settings Fetcher, Quality Recheck), plus the HTTP
// server fronting all of them. cmd/acerestreamerd's main.go is the only
// caller.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/config"
	"github.com/acerestreamer/gateway/internal/configstore"
	"github.com/acerestreamer/gateway/internal/epg"
	"github.com/acerestreamer/gateway/internal/hlsproxy"
	"github.com/acerestreamer/gateway/internal/httpapi"
	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/pool"
	"github.com/acerestreamer/gateway/internal/quality"
	"github.com/acerestreamer/gateway/internal/remotesettings"
	"github.com/acerestreamer/gateway/internal/scrape"
	"github.com/acerestreamer/gateway/internal/scrapecache"
	"github.com/acerestreamer/gateway/internal/store"
	"github.com/acerestreamer/gateway/internal/tokenauth"
	"github.com/acerestreamer/gateway/internal/umeclient"
	"github.com/acerestreamer/gateway/internal/userstore"
	"github.com/acerestreamer/gateway/internal/xcfrontdoor"
)

// poolboyTick and recheckTick are fixed wake cadences for their
// respective long-lived tasks; neither is a per-deployment knob in
// spec.md, unlike the scrape/EPG/remote-settings intervals which read
// from config on every tick.
const (
	poolboyTick = 30 * time.Second
	recheckTick = time.Minute

	shutdownGrace = 10 * time.Second
)

// Services owns every component and the long-lived tasks that drive
// them.
type Services struct {
	cfg *configstore.Store

	store    *store.Store
	pool     *pool.Pool
	quality  *quality.Tracker
	proxy    *hlsproxy.Proxy
	agg      *scrape.Aggregator
	epgm     *epg.Merger
	verifier *tokenauth.Verifier
	remote   *remotesettings.Fetcher

	handler http.Handler
	log     zerolog.Logger
}

// New constructs every component, wiring each narrow interface dependency
// to the concrete type that satisfies it. InstanceDir backs the SQLite
// catalog, the scrape cache, the EPG source cache, and the operator's
// users.json.
func New(cfg *configstore.Store, base zerolog.Logger) (*Services, error) {
	c := cfg.Get()
	log := obslog.For(base, "app")

	if err := os.MkdirAll(c.InstanceDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create instance dir: %w", err)
	}

	st, err := store.Open(filepath.Join(c.InstanceDir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	ume := umeclient.New(c.UMEAddress, httpclient.Default())
	pl := pool.New(ume, c.UMEAddress, c.PoolMaxSessions)
	qt := quality.New(st)

	epgm := epg.New(epg.FromConfig(c.EPGs.Sources, c.InstanceDir), c.EPGs.GeneratorName, base)
	cache := scrapecache.New(filepath.Join(c.InstanceDir, "scrape_cache"))
	agg := scrape.New(scrape.FromConfig(c.Scraper.Sources), st, umeclient.ContentIDResolverAdapter{Client: ume}, epgm, cache, base)

	users := userstore.New(filepath.Join(c.InstanceDir, "users.json"))
	verifier := tokenauth.New(users)

	proxy := hlsproxy.New(pl, st, verifier, qt, c.ExternalOrigin, c.UMEAddress, base)

	front := xcfrontdoor.New(st, epgm, verifier, verifier, proxy, c.ExternalOrigin, serverInfoFor(c.ExternalOrigin), base)
	front.TitleOverride = httpapi.TitleOverrideLookup(cfg)

	admin := &httpapi.AdminAPI{Config: cfg, Pool: pl}

	handler := httpapi.NewRouter(httpapi.Config{
		Proxy:      proxy,
		FrontDoor:  front,
		Admin:      admin,
		TVGLogoDir: filepath.Join(c.InstanceDir, "tvg_logos"),
	}, base)

	s := &Services{
		cfg:      cfg,
		store:    st,
		pool:     pl,
		quality:  qt,
		proxy:    proxy,
		agg:      agg,
		epgm:     epgm,
		verifier: verifier,
		handler:  handler,
		log:      log,
	}
	s.remote = remotesettings.New(cfg, s.applyRemoteSettings, base)
	return s, nil
}

// serverInfoFor derives the XC server_info block's URL/port fields from
// the configured external origin.
func serverInfoFor(externalOrigin string) xcfrontdoor.ServerInfo {
	u, err := url.Parse(externalOrigin)
	if err != nil {
		return xcfrontdoor.ServerInfo{}
	}
	info := xcfrontdoor.ServerInfo{URL: u.Hostname(), Port: u.Port()}
	if u.Scheme == "https" {
		info.HTTPSPort = info.Port
	}
	if info.Port == "" {
		if u.Scheme == "https" {
			info.Port = "443"
			info.HTTPSPort = "443"
		} else {
			info.Port = "80"
		}
	}
	return info
}

// applyRemoteSettings rebuilds the Scrape Aggregator's and EPG Merger's
// source lists after the Remote-Settings Fetcher replaces the scraper/
// epgs config sections. Called from the Fetcher's own goroutine.
func (s *Services) applyRemoteSettings(next config.AppConfig) {
	s.agg.SetSources(scrape.FromConfig(next.Scraper.Sources))
	s.epgm.SetSources(epg.FromConfig(next.EPGs.Sources, next.InstanceDir))
	s.log.Info().Msg("scrape and epg source lists rebuilt from remote settings")
}

// Run starts the five long-lived tasks and the HTTP server, and blocks
// until ctx is cancelled or the HTTP server fails to start. On return
// every task has stopped; callers are expected to bound ctx's
// cancellation-to-shutdown window (spec.md's 60s).
func (s *Services) Run(ctx context.Context) error {
	c := s.cfg.Get()
	srv := &http.Server{Addr: c.ListenAddr, Handler: s.handler}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	fail := func(err error) {
		once.Do(func() { firstErr = err })
		cancel()
	}

	wg.Add(5)
	go func() { defer wg.Done(); s.pool.RunPoolboy(runCtx, poolboyTick) }()
	go func() { defer wg.Done(); s.runScrapeLoop(runCtx) }()
	go func() { defer wg.Done(); s.epgm.Run(runCtx) }()
	go func() { defer wg.Done(); s.remote.Run(runCtx) }()
	go func() {
		defer wg.Done()
		s.quality.RunRecheckSweep(runCtx, s.pool, httpClientFor(s.proxy), recheckTick)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.log.Info().Str("addr", c.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(fmt.Errorf("app: http server: %w", err))
		}
	}()

	<-runCtx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fail(fmt.Errorf("app: http shutdown: %w", err))
	}

	wg.Wait()
	s.store.Close()
	return firstErr
}

// runScrapeLoop wraps scrape.Aggregator.RunPass, which runs exactly one
// pass, in the wake-on-interval loop the long-lived Scrape Aggregator
// task needs; the interval is re-read from config every tick so an
// admin-API edit takes effect without a restart.
func (s *Services) runScrapeLoop(ctx context.Context) {
	for {
		if err := s.agg.RunPass(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("scrape pass failed")
		}
		if ctx.Err() != nil {
			return
		}
		interval := time.Duration(s.cfg.Get().Scraper.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func httpClientFor(p *hlsproxy.Proxy) *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
