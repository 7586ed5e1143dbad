// Package quality implements the per-content-id health score: the
// playlist-progress heuristic described in the component design, the
// first-success floor, and the ≤once/minute persistence cadence.
package quality

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mogiioin/hls-m3u8/m3u8"
)

// Quality mirrors the persisted entity. A nil/missing entry is semantically
// equivalent to Score == -1 ("never evaluated").
type Quality struct {
	Score               int
	HasEverWorked       bool
	M3UFailures         int
	LastSegmentNumber   int
	LastSegmentFetched  time.Time
	NextSegmentExpected time.Duration
	LastDBWrite         time.Time
	LastMessage         string
}

func neverEvaluated() Quality {
	return Quality{Score: -1}
}

// Store persists a Quality row. Implemented by internal/store.
type Store interface {
	SaveQuality(contentID string, q Quality) error
}

// Sink is the narrow interface the Session Pool and HLS Reverse Proxy
// consume to report observations, so neither depends on the concrete
// Tracker type (breaks the Pool<->Quality dependency cycle).
type Sink interface {
	Observe(contentID string, playlistBody string, failed bool)
}

// lastNumberRe pulls the trailing integer out of a segment URI such as
// "seg-482.ts" or "482.ts", used to detect playlist progress.
var lastNumberRe = regexp.MustCompile(`([0-9]+)[^0-9/]*$`)

// Tracker holds the in-memory Quality cache, authoritative between writes,
// and persists to Store at most once per minute per content-id.
type Tracker struct {
	mu     sync.Mutex
	byID   map[string]*Quality
	lastWr map[string]time.Time
	store  Store
	now    func() time.Time
}

func New(store Store) *Tracker {
	return &Tracker{
		byID:   make(map[string]*Quality),
		lastWr: make(map[string]time.Time),
		store:  store,
		now:    time.Now,
	}
}

// Get returns a copy of the current Quality for contentID, or the
// never-evaluated sentinel if no observation has been recorded.
func (t *Tracker) Get(contentID string) Quality {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.byID[contentID]; ok {
		return *q
	}
	return neverEvaluated()
}

// Observe applies one observation for contentID: playlistBody is the raw
// HLS media playlist text, or failed=true for a fetch failure (treated as
// an empty playlist). Master playlists (containing #EXT-X-STREAM-INF) are
// ignored — they carry no segment-progress evidence.
func (t *Tracker) Observe(contentID string, playlistBody string, failed bool) {
	var media *m3u8.MediaPlaylist
	if !failed && strings.TrimSpace(playlistBody) != "" {
		pl, listType, err := m3u8.Decode(*bytes.NewBufferString(playlistBody), false)
		if err == nil {
			if listType == m3u8.MASTER {
				// Master playlists carry no segment-progress evidence.
				return
			}
			if mp, ok := pl.(*m3u8.MediaPlaylist); ok {
				media = mp
			}
		}
	}

	t.mu.Lock()
	q, ok := t.byID[contentID]
	if !ok {
		nq := neverEvaluated()
		q = &nq
		t.byID[contentID] = q
	}

	var rating int
	if failed || strings.TrimSpace(playlistBody) == "" || media == nil {
		rating = max(-q.M3UFailures, -5)
		q.M3UFailures++
	} else {
		tsNumber, haveTS := lastSegmentNumber(media)
		if dur, ok := lastSegmentDuration(media); ok {
			q.NextSegmentExpected = dur
		}
		q.M3UFailures = 0

		now := t.now()
		switch {
		case haveTS && tsNumber > q.LastSegmentNumber:
			rating = clamp(tsNumber-q.LastSegmentNumber, 1, 5)
			q.LastSegmentFetched = now
		case q.NextSegmentExpected > 0 && !q.LastSegmentFetched.IsZero() && now.Sub(q.LastSegmentFetched) > q.NextSegmentExpected:
			if haveTS && tsNumber < 20 {
				rating = -1
			} else {
				rating = -4
			}
		default:
			rating = 0
		}
		if haveTS {
			q.LastSegmentNumber = tsNumber
		}
	}

	if rating > 0 {
		if q.Score < 20 {
			q.Score = 20
		}
		q.HasEverWorked = true
	}
	q.Score = clamp(q.Score+rating, 0, 99)
	t.mu.Unlock()

	t.maybePersist(contentID, *q)
}

func (t *Tracker) maybePersist(contentID string, q Quality) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	last := t.lastWr[contentID]
	now := t.now()
	if !last.IsZero() && now.Sub(last) < time.Minute {
		t.mu.Unlock()
		return
	}
	t.lastWr[contentID] = now
	t.mu.Unlock()

	q.LastDBWrite = now
	_ = t.store.SaveQuality(contentID, q)
}

// lastSegment returns the most recent non-nil segment decoded from media.
func lastSegment(media *m3u8.MediaPlaylist) *m3u8.MediaSegment {
	var last *m3u8.MediaSegment
	for _, seg := range media.Segments {
		if seg != nil {
			last = seg
		}
	}
	return last
}

// lastSegmentNumber extracts the trailing integer from the last segment's
// URI (e.g. "seg-482.ts" -> 482), the playlist-progress counter.
func lastSegmentNumber(media *m3u8.MediaPlaylist) (int, bool) {
	seg := lastSegment(media)
	if seg == nil {
		return 0, false
	}
	m := lastNumberRe.FindStringSubmatch(seg.URI)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func lastSegmentDuration(media *m3u8.MediaPlaylist) (time.Duration, bool) {
	seg := lastSegment(media)
	if seg == nil || seg.Duration <= 0 {
		return 0, false
	}
	return time.Duration(seg.Duration * float64(time.Second)), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
