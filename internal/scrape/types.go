// Package scrape implements the Scrape Aggregator: three independent
// scrapers (html, iptv, api) that each yield FoundStream records, merged
// into the catalog by content-id.
package scrape

import (
	"context"
	"time"

	"github.com/acerestreamer/gateway/internal/store"
)

// FoundStream is one record yielded by a scraper, before merge.
type FoundStream struct {
	Title       string
	ContentID   string
	Infohash    string
	TVGID       string
	TVGLogo     string
	GroupTitle  string
	SiteSource  string // the ScrapeSource.Name this record came from
	LastFoundAt time.Time
}

// HTMLFilter carries the html-scraper-specific matching knobs. Only
// populated for sources of type "html".
type HTMLFilter struct {
	TargetClass         string
	RegexPostprocessing []string
}

// ScrapeSource is one configured source: a tagged variant over {html, iptv,
// api}, identified by a name unique across all types.
type ScrapeSource struct {
	Type        string // "html" | "iptv" | "api"
	Name        string
	URL         string
	TitleFilter TitleFilter
	HTMLFilter  HTMLFilter // only meaningful when Type == "html"

	TVGIDOverrides map[string]string
}

// TitleFilter implements the five-rule, short-circuit title inclusion
// check described in Allows' doc comment.
type TitleFilter struct {
	AlwaysExclude []string
	AlwaysInclude []string
	Exclude       []string
	Include       []string
}

// CatalogUpserter is the persistence dependency the Aggregator needs,
// narrowed to the three methods it calls so nothing here depends on
// *store.Store's full surface (mirrors quality.Sink's narrow-interface
// idiom). internal/store has no reason to import internal/scrape, so
// referencing store.CatalogEntry here carries no cycle risk.
type CatalogUpserter interface {
	UpsertCatalogEntry(entry store.CatalogEntry) (xcID int, err error)
	ResolveContentID(ctx context.Context, idOrInfohash string) (string, bool)
	MapInfohashToContentID(infohash, contentID string) error
}

// ContentIDResolver resolves an infohash against the UME API, used only
// for entries (H)'s mapping table cannot already resolve. ok=false with a
// nil error means UME reported no mapping; a non-nil error means the call
// itself failed.
type ContentIDResolver interface {
	ContentIDForInfohash(ctx context.Context, infohash string) (string, bool, error)
}

// EPGFeeder receives every tvg-id discovered during a pass, so the EPG
// Merger's source list can stay in sync without this package depending on
// internal/epg.
type EPGFeeder interface {
	NoteTVGID(tvgID string)
}
