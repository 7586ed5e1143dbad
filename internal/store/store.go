// Package store implements the Persistence component: the catalog table
// and its xc-id/infohash/category side-tables, plus the Quality cache,
// all backed by modernc.org/sqlite. Reads are served from an in-memory
// snapshot invalidated on any write that touches the catalog.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/acerestreamer/gateway/internal/quality"
)

// CatalogEntry mirrors the persisted catalog entity.
type CatalogEntry struct {
	XCID            int
	Title           string
	ContentID       string
	Infohash        string
	TVGID           string
	TVGLogo         string
	GroupTitle      string
	SitesFoundOn    map[string]struct{}
	LastScrapedTime time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS ace_streams (
	xc_id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id TEXT UNIQUE NOT NULL,
	infohash TEXT,
	title TEXT NOT NULL,
	tvg_id TEXT,
	tvg_logo TEXT,
	group_title TEXT,
	sites_found_on TEXT NOT NULL DEFAULT '',
	last_scraped_time INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS content_id_infohash (
	content_id TEXT UNIQUE NOT NULL,
	infohash TEXT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS category_xc (
	xc_category_id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS ace_quality_cache (
	content_id TEXT PRIMARY KEY,
	score INTEGER NOT NULL,
	has_ever_worked INTEGER NOT NULL,
	m3u_failures INTEGER NOT NULL,
	last_segment_number INTEGER NOT NULL DEFAULT 0,
	next_segment_expected_ms INTEGER NOT NULL DEFAULT 0,
	last_db_write INTEGER NOT NULL,
	last_message TEXT NOT NULL DEFAULT ''
);
`

// Store is the Persistence component. Safe for concurrent use.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	snapshot []CatalogEntry // nil means invalidated, rebuild on next read
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// UpsertCatalogEntry inserts a new content-id or updates the existing row.
// xc_id is assigned by SQLite on first insert and never changes afterward.
func (s *Store) UpsertCatalogEntry(e CatalogEntry) (xcID int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	sites := joinSites(e.SitesFoundOn)
	res, err := tx.Exec(`
		INSERT INTO ace_streams (content_id, infohash, title, tvg_id, tvg_logo, group_title, sites_found_on, last_scraped_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			infohash=excluded.infohash, title=excluded.title, tvg_id=excluded.tvg_id,
			tvg_logo=excluded.tvg_logo, group_title=excluded.group_title,
			sites_found_on=excluded.sites_found_on, last_scraped_time=excluded.last_scraped_time
	`, e.ContentID, nullable(e.Infohash), e.Title, e.TVGID, nullable(e.TVGLogo), e.GroupTitle, sites, e.LastScrapedTime.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: upsert catalog entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	s.invalidate()

	id, _ := res.LastInsertId()
	if id == 0 {
		row := s.db.QueryRow(`SELECT xc_id FROM ace_streams WHERE content_id = ?`, e.ContentID)
		_ = row.Scan(&xcID)
		return xcID, nil
	}
	return int(id), nil
}

func (s *Store) DeleteCatalogEntry(contentID string) error {
	_, err := s.db.Exec(`DELETE FROM ace_streams WHERE content_id = ?`, contentID)
	if err != nil {
		return fmt.Errorf("store: delete catalog entry: %w", err)
	}
	s.invalidate()
	return nil
}

// ListCatalogEntries returns the in-memory snapshot, rebuilding it from the
// database if it was invalidated by a prior write.
func (s *Store) ListCatalogEntries() ([]CatalogEntry, error) {
	s.mu.RLock()
	if s.snapshot != nil {
		out := make([]CatalogEntry, len(s.snapshot))
		copy(out, s.snapshot)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT xc_id, content_id, COALESCE(infohash,''), title, tvg_id, COALESCE(tvg_logo,''), group_title, sites_found_on, last_scraped_time FROM ace_streams ORDER BY xc_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list catalog entries: %w", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var sites string
		var lastScraped int64
		if err := rows.Scan(&e.XCID, &e.ContentID, &e.Infohash, &e.Title, &e.TVGID, &e.TVGLogo, &e.GroupTitle, &sites, &lastScraped); err != nil {
			return nil, fmt.Errorf("store: scan catalog entry: %w", err)
		}
		e.SitesFoundOn = splitSites(sites)
		e.LastScrapedTime = time.Unix(lastScraped, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = out
	s.mu.Unlock()

	cp := make([]CatalogEntry, len(out))
	copy(cp, out)
	return cp, nil
}

func (s *Store) GetCatalogEntryByContentID(contentID string) (CatalogEntry, bool) {
	all, err := s.ListCatalogEntries()
	if err != nil {
		return CatalogEntry{}, false
	}
	for _, e := range all {
		if e.ContentID == contentID {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

func (s *Store) GetCatalogEntryByXCID(xcID int) (CatalogEntry, bool) {
	all, err := s.ListCatalogEntries()
	if err != nil {
		return CatalogEntry{}, false
	}
	for _, e := range all {
		if e.XCID == xcID {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// ContentIDForXCID satisfies the lookup signature hlsproxy.ResolveXCStream expects.
func (s *Store) ContentIDForXCID(xcID int) (string, bool) {
	e, ok := s.GetCatalogEntryByXCID(xcID)
	return e.ContentID, ok
}

// MapInfohashToContentID records a learned bidirectional mapping.
func (s *Store) MapInfohashToContentID(infohash, contentID string) error {
	_, err := s.db.Exec(`
		INSERT INTO content_id_infohash (content_id, infohash) VALUES (?, ?)
		ON CONFLICT(content_id) DO UPDATE SET infohash=excluded.infohash
	`, contentID, infohash)
	if err != nil {
		return fmt.Errorf("store: map infohash: %w", err)
	}
	return nil
}

// ResolveContentID implements hlsproxy.IDResolver: a value already present
// as a content-id resolves to itself; otherwise it is looked up as an
// infohash in the bidirectional mapping table.
func (s *Store) ResolveContentID(ctx context.Context, idOrInfohash string) (string, bool) {
	var exists int
	_ = s.db.QueryRow(`SELECT 1 FROM ace_streams WHERE content_id = ?`, idOrInfohash).Scan(&exists)
	if exists == 1 {
		return idOrInfohash, true
	}
	var contentID string
	err := s.db.QueryRow(`SELECT content_id FROM content_id_infohash WHERE infohash = ?`, idOrInfohash).Scan(&contentID)
	if err != nil {
		return "", false
	}
	return contentID, true
}

// CategoryXCID returns the dense integer id for category, allocating a new
// one (never reused) on first sight.
func (s *Store) CategoryXCID(category string) (int, error) {
	var id int
	err := s.db.QueryRow(`SELECT xc_category_id FROM category_xc WHERE category = ?`, category).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup category: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO category_xc (category) VALUES (?)`, category)
	if err != nil {
		return 0, fmt.Errorf("store: insert category: %w", err)
	}
	newID, _ := res.LastInsertId()
	return int(newID), nil
}

// SaveQuality implements quality.Store.
func (s *Store) SaveQuality(contentID string, q quality.Quality) error {
	_, err := s.db.Exec(`
		INSERT INTO ace_quality_cache (content_id, score, has_ever_worked, m3u_failures, last_segment_number, next_segment_expected_ms, last_db_write, last_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			score=excluded.score, has_ever_worked=excluded.has_ever_worked,
			m3u_failures=excluded.m3u_failures, last_segment_number=excluded.last_segment_number,
			next_segment_expected_ms=excluded.next_segment_expected_ms,
			last_db_write=excluded.last_db_write, last_message=excluded.last_message
	`, contentID, q.Score, boolToInt(q.HasEverWorked), q.M3UFailures, q.LastSegmentNumber,
		q.NextSegmentExpected.Milliseconds(), q.LastDBWrite.Unix(), q.LastMessage)
	if err != nil {
		return fmt.Errorf("store: save quality: %w", err)
	}
	return nil
}

// LoadQuality returns a persisted quality row, used to seed the Tracker's
// in-memory cache at startup.
func (s *Store) LoadQuality(contentID string) (quality.Quality, bool) {
	var q quality.Quality
	var hasEverWorked int
	var nextExpectedMs int64
	var lastDBWrite int64
	err := s.db.QueryRow(`
		SELECT score, has_ever_worked, m3u_failures, last_segment_number, next_segment_expected_ms, last_db_write, last_message
		FROM ace_quality_cache WHERE content_id = ?
	`, contentID).Scan(&q.Score, &hasEverWorked, &q.M3UFailures, &q.LastSegmentNumber, &nextExpectedMs, &lastDBWrite, &q.LastMessage)
	if err != nil {
		return quality.Quality{}, false
	}
	q.HasEverWorked = hasEverWorked != 0
	q.NextSegmentExpected = time.Duration(nextExpectedMs) * time.Millisecond
	q.LastDBWrite = time.Unix(lastDBWrite, 0)
	return q, true
}

func joinSites(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func splitSites(s string) map[string]struct{} {
	out := map[string]struct{}{}
	if s == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out[part] = struct{}{}
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
