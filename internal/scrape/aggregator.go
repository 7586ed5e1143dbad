package scrape

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/scrapecache"
	"github.com/acerestreamer/gateway/internal/store"
)

// Scraper is implemented by each of the three scraper variants. Errors
// from one scraper never fail the others: RunPass logs and continues.
type Scraper interface {
	Scrape(ctx context.Context) ([]FoundStream, error)
}

// retryDelay is how long the infohash->content-id resolution fill waits
// before retrying the still-unresolved set exactly once.
const retryDelay = 60 * time.Second

// Aggregator runs all configured sources concurrently each pass, merges
// their output by content-id, fills in missing content-ids from
// infohashes, and persists the result.
type Aggregator struct {
	srcMu   sync.RWMutex
	sources []ScrapeSource

	store    CatalogUpserter
	resolver ContentIDResolver
	epg      EPGFeeder
	cache    *scrapecache.Cache
	client   *http.Client

	log   zerolog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(sources []ScrapeSource, store CatalogUpserter, resolver ContentIDResolver, epg EPGFeeder, cache *scrapecache.Cache, base zerolog.Logger) *Aggregator {
	return &Aggregator{
		sources:  sources,
		store:    store,
		resolver: resolver,
		epg:      epg,
		cache:    cache,
		client:   httpclient.Default(),
		log:      obslog.For(base, "scrape"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// SetSources replaces the configured source list; the next RunPass picks
// it up. Used by the Remote-Settings Fetcher to restart the Aggregator's
// work without tearing down the long-lived task that calls RunPass.
func (a *Aggregator) SetSources(sources []ScrapeSource) {
	a.srcMu.Lock()
	defer a.srcMu.Unlock()
	a.sources = sources
}

func (a *Aggregator) sourcesSnapshot() []ScrapeSource {
	a.srcMu.RLock()
	defer a.srcMu.RUnlock()
	out := make([]ScrapeSource, len(a.sources))
	copy(out, a.sources)
	return out
}

// mergedEntry is the in-progress merge-by-content-id record.
type mergedEntry struct {
	title       string
	contentID   string
	infohash    string
	tvgID       string
	tvgLogo     string
	groupTitle  string
	sites       map[string]struct{}
	lastFoundAt time.Time
}

// RunPass executes one full scrape: fan out to every source, merge,
// resolve missing content-ids, persist, and notify the EPG Merger of every
// tvg-id seen.
func (a *Aggregator) RunPass(ctx context.Context) error {
	found := a.scrapeAll(ctx)

	byContentID := map[string]*mergedEntry{}
	byInfohashOnly := map[string]*mergedEntry{}
	for _, fs := range found {
		if fs.ContentID != "" {
			mergeFoundStream(byContentID, fs.ContentID, fs)
			continue
		}
		if fs.Infohash != "" {
			mergeFoundStream(byInfohashOnly, fs.Infohash, fs)
		}
	}

	a.fillContentIDs(ctx, byContentID, byInfohashOnly)

	tvgIDs := map[string]struct{}{}
	for _, e := range byContentID {
		if e.tvgID != "" {
			tvgIDs[e.tvgID] = struct{}{}
		}
		if err := a.persist(e); err != nil {
			a.log.Warn().Err(err).Str("content_id", e.contentID).Msg("persist catalog entry failed")
		}
	}
	if a.epg != nil {
		for id := range tvgIDs {
			a.epg.NoteTVGID(id)
		}
	}
	return ctx.Err()
}

func (a *Aggregator) scrapeAll(ctx context.Context) []FoundStream {
	var mu sync.Mutex
	var all []FoundStream
	var wg sync.WaitGroup
	for _, src := range a.sourcesSnapshot() {
		scraper, err := a.scraperFor(src)
		if err != nil {
			a.log.Warn().Err(err).Str("source", src.Name).Msg("skipping source: bad config")
			continue
		}
		wg.Add(1)
		go func(src ScrapeSource, s Scraper) {
			defer wg.Done()
			streams, err := s.Scrape(ctx)
			if err != nil {
				a.log.Warn().Err(err).Str("source", src.Name).Msg("scrape failed")
				return
			}
			mu.Lock()
			all = append(all, streams...)
			mu.Unlock()
		}(src, scraper)
	}
	wg.Wait()
	return all
}

func (a *Aggregator) scraperFor(src ScrapeSource) (Scraper, error) {
	switch src.Type {
	case "html":
		return newHTMLScraper(src, a.client, a.cache)
	case "iptv":
		return newIPTVScraper(src, a.client), nil
	case "api":
		return newAPIScraper(src, a.client), nil
	default:
		return nil, errUnknownSourceType(src.Type)
	}
}

// fillContentIDs resolves every infohash-only merged entry against (H)'s
// mapping table, then the UME API for whatever remains, retrying the
// still-missing set exactly once after retryDelay. Resolved entries are
// merged into byContentID.
func (a *Aggregator) fillContentIDs(ctx context.Context, byContentID, byInfohashOnly map[string]*mergedEntry) {
	missing := a.resolveFromStore(ctx, byContentID, byInfohashOnly)
	if len(missing) == 0 {
		return
	}
	missing = a.resolveFromUME(ctx, byContentID, missing)
	if len(missing) == 0 {
		return
	}
	if err := a.sleep(ctx, retryDelay); err != nil {
		return
	}
	a.resolveFromUME(ctx, byContentID, missing)
}

func (a *Aggregator) resolveFromStore(ctx context.Context, byContentID, byInfohashOnly map[string]*mergedEntry) map[string]*mergedEntry {
	missing := map[string]*mergedEntry{}
	for infohash, e := range byInfohashOnly {
		contentID, ok := a.store.ResolveContentID(ctx, infohash)
		if !ok {
			missing[infohash] = e
			continue
		}
		e.contentID = contentID
		mergeEntry(byContentID, contentID, e)
	}
	return missing
}

func (a *Aggregator) resolveFromUME(ctx context.Context, byContentID map[string]*mergedEntry, missing map[string]*mergedEntry) map[string]*mergedEntry {
	if a.resolver == nil {
		return missing
	}
	stillMissing := map[string]*mergedEntry{}
	for infohash, e := range missing {
		contentID, ok, err := a.resolver.ContentIDForInfohash(ctx, infohash)
		if err != nil || !ok {
			stillMissing[infohash] = e
			continue
		}
		e.contentID = contentID
		mergeEntry(byContentID, contentID, e)
		if err := a.store.MapInfohashToContentID(infohash, contentID); err != nil {
			a.log.Warn().Err(err).Str("infohash", infohash).Msg("failed to persist infohash mapping")
		}
	}
	return stillMissing
}

func (a *Aggregator) persist(e *mergedEntry) error {
	_, err := a.store.UpsertCatalogEntry(store.CatalogEntry{
		Title:           e.title,
		ContentID:       e.contentID,
		Infohash:        e.infohash,
		TVGID:           e.tvgID,
		TVGLogo:         e.tvgLogo,
		GroupTitle:      e.groupTitle,
		SitesFoundOn:    e.sites,
		LastScrapedTime: a.now(),
	})
	return err
}

func mergeFoundStream(into map[string]*mergedEntry, key string, fs FoundStream) {
	e, ok := into[key]
	if !ok {
		e = &mergedEntry{sites: map[string]struct{}{}}
		into[key] = e
	}
	if fs.ContentID != "" {
		e.contentID = fs.ContentID
	}
	if fs.SiteSource != "" {
		e.sites[fs.SiteSource] = struct{}{}
	}
	if e.title == "" || (titleBracketCCRe.MatchString(fs.Title) && !titleBracketCCRe.MatchString(e.title)) {
		e.title = fs.Title
	}
	if e.infohash == "" {
		e.infohash = fs.Infohash
	}
	if e.tvgLogo == "" {
		e.tvgLogo = fs.TVGLogo
	}
	if e.tvgID == "" {
		e.tvgID = fs.TVGID
	}
	if e.groupTitle == "" {
		e.groupTitle = fs.GroupTitle
	}
	if fs.LastFoundAt.After(e.lastFoundAt) {
		e.lastFoundAt = fs.LastFoundAt
	}
}

// mergeEntry folds a resolved infohash-only entry into the content-id map,
// applying the same union rules as mergeFoundStream against any entry
// already present for that content-id.
func mergeEntry(into map[string]*mergedEntry, contentID string, src *mergedEntry) {
	existing, ok := into[contentID]
	if !ok {
		src.contentID = contentID
		into[contentID] = src
		return
	}
	for site := range src.sites {
		existing.sites[site] = struct{}{}
	}
	if existing.title == "" || (titleBracketCCRe.MatchString(src.title) && !titleBracketCCRe.MatchString(existing.title)) {
		existing.title = src.title
	}
	if existing.infohash == "" {
		existing.infohash = src.infohash
	}
	if existing.tvgLogo == "" {
		existing.tvgLogo = src.tvgLogo
	}
	if existing.tvgID == "" {
		existing.tvgID = src.tvgID
	}
	if existing.groupTitle == "" {
		existing.groupTitle = src.groupTitle
	}
	if src.lastFoundAt.After(existing.lastFoundAt) {
		existing.lastFoundAt = src.lastFoundAt
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type errUnknownSourceType string

func (e errUnknownSourceType) Error() string {
	return "unknown scrape source type: " + string(e)
}
