// Package epg implements the EPG Merger: it keeps a small set of XMLTV
// sources refreshed on disk, and for every tvg-id the Scrape Aggregator
// discovers, selects the best-scoring source's guide data and condenses it
// into a single XMLTV document.
package epg

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/streamid"
)

// minWake and maxWake bound the update loop's sleep between passes.
const (
	minWake     = time.Minute
	maxWake     = 6 * time.Hour
	staleAfter  = 6 * time.Hour
	settleDelay = 10 * time.Second
)

// Source is one configured XMLTV feed. Format is "xml" or "xml.gz"; a
// ".gz" body is decompressed before being written to SavedFilePath.
type Source struct {
	mu             sync.Mutex
	URL            string
	Format         string
	TVGIDOverrides map[string]string
	SavedFilePath  string
	LastUpdated    *time.Time
}

// timeToUpdate reports whether this source is due for a refresh.
func (s *Source) timeToUpdate(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastUpdated == nil || now.Sub(*s.LastUpdated) > staleAfter
}

// timeUntilNextUpdate is how long until this source next becomes due.
func (s *Source) timeUntilNextUpdate(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LastUpdated == nil {
		return 0
	}
	d := staleAfter - now.Sub(*s.LastUpdated)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Source) markUpdated(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now
	s.LastUpdated = &t
}

// Merger owns the configured Sources, the interest set of tvg-ids fed by
// the Scrape Aggregator, and the last condensed XMLTV document.
type Merger struct {
	srcMu   sync.RWMutex
	sources []*Source

	mu         sync.Mutex
	tvgIDSet   map[string]struct{}
	tvgIDOrder []string // first-seen order; preserved in the condensed output
	dirty      bool     // tvgIDSet changed since the last recondense

	generatorName string
	client        *http.Client

	condMu    sync.RWMutex
	condensed []byte

	log    zerolog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool
	settle time.Duration
}

func New(sources []*Source, generatorName string, base zerolog.Logger) *Merger {
	if generatorName == "" {
		generatorName = "acerestreamer"
	}
	return &Merger{
		sources:       sources,
		tvgIDSet:      map[string]struct{}{},
		generatorName: generatorName,
		client:        httpclient.Default(),
		log:           obslog.For(base, "epg"),
		now:           time.Now,
		sleep:         sleepCtx,
		settle:        settleDelay,
	}
}

// SetSources replaces the configured XMLTV source list. Used by the
// Remote-Settings Fetcher to rebuild the Merger's source list in place;
// the running update loop picks up the new list on its next wake.
func (m *Merger) SetSources(sources []*Source) {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()
	m.sources = sources
}

func (m *Merger) sourcesSnapshot() []*Source {
	m.srcMu.RLock()
	defer m.srcMu.RUnlock()
	out := make([]*Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// NoteTVGID records tvg-id as one the gateway needs guide data for. Safe
// to call concurrently; satisfies internal/scrape's EPGFeeder interface.
func (m *Merger) NoteTVGID(tvgID string) {
	if tvgID == "" {
		return
	}
	norm := streamid.NormalizeTVGID(tvgID, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tvgIDSet[norm]; ok {
		return
	}
	m.tvgIDSet[norm] = struct{}{}
	m.tvgIDOrder = append(m.tvgIDOrder, norm)
	m.dirty = true
}

// takeDirty reports whether the interest set changed since the last call,
// clearing the flag.
func (m *Merger) takeDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty
	m.dirty = false
	return d
}

// Condensed returns the most recently emitted XMLTV document, or nil if a
// pass has never completed.
func (m *Merger) Condensed() []byte {
	m.condMu.RLock()
	defer m.condMu.RUnlock()
	return m.condensed
}

func (m *Merger) interestSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.tvgIDOrder))
	copy(out, m.tvgIDOrder)
	return out
}

// Run owns the update loop: wake at min(per-source time_until_next),
// bounded to [minWake, maxWake]; after any source refresh succeeds, wait
// settleDelay then recondense. Cancellation interrupts both sleep and
// in-flight work.
func (m *Merger) Run(ctx context.Context) {
	for {
		refreshedAny := m.refreshDue(ctx)
		if ctx.Err() != nil {
			return
		}
		interestChanged := m.takeDirty()
		if refreshedAny || interestChanged {
			if !m.sleep(ctx, m.settle) {
				return
			}
			m.recondense()
		}

		wake := m.nextWake()
		if !m.sleep(ctx, wake) {
			return
		}
	}
}

func (m *Merger) refreshDue(ctx context.Context) bool {
	now := m.now()
	refreshedAny := false
	for _, src := range m.sourcesSnapshot() {
		if ctx.Err() != nil {
			return refreshedAny
		}
		if !src.timeToUpdate(now) {
			continue
		}
		if err := refreshSource(ctx, m.client, src, now); err != nil {
			m.log.Warn().Err(err).Str("url", src.URL).Msg("epg source refresh failed")
			continue
		}
		refreshedAny = true
	}
	return refreshedAny
}

func (m *Merger) nextWake() time.Duration {
	now := m.now()
	wake := maxWake
	for _, src := range m.sourcesSnapshot() {
		if d := src.timeUntilNextUpdate(now); d < wake {
			wake = d
		}
	}
	if wake < minWake {
		wake = minWake
	}
	return wake
}

// recondense rebuilds the emitted document from the current interest set
// and on-disk source files.
func (m *Merger) recondense() {
	tvgIDs := m.interestSnapshot()
	if len(tvgIDs) == 0 {
		return
	}
	candidates := buildCandidates(m.sourcesSnapshot(), tvgIDs, m.now(), m.log)
	doc := condense(m.generatorName, tvgIDs, candidates)
	m.condMu.Lock()
	m.condensed = doc
	m.condMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
