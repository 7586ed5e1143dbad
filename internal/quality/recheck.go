package quality

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// recheckThreshold is the score below which a content-id is considered
// for a recheck: low-scoring streams may have recovered since their last
// observation, but nothing else re-fetches their playlist once a client
// stops polling it.
const recheckThreshold = 20

// recheckTries is how many times one sweep fetches each content-id's
// playlist, recheckTrySpacing apart.
const recheckTries = 3

const recheckTrySpacing = time.Second

// recheckSpacing is the gap held after each content-id's tries within one
// sweep, so a sweep does not burst every poor-quality stream's playlist
// request at once.
const recheckSpacing = 10 * time.Second

// HLSURLLookup is the narrow Pool dependency the recheck sweep needs: the
// same playback URL construction a foreground proxy request would use.
type HLSURLLookup interface {
	GetHLSURL(ctx context.Context, contentID string) (string, error)
}

// RunRecheckSweep runs the Quality Recheck task: on tick, if a previous
// sweep is not still running, walk every content-id scored below
// recheckThreshold, re-fetch its HLS media playlist recheckTries times, and feed each result
// through Observe exactly as a foreground proxy request would. Single-
// flight is enforced by running, an atomic guard, mirroring the
// single-long-lived-task-per-tick shape internal/pool.RunPoolboy uses for
// its own wake loop.
func (t *Tracker) RunRecheckSweep(ctx context.Context, pool HLSURLLookup, client *http.Client, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var running atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer running.Store(false)
				t.recheckSweep(ctx, pool, client)
			}()
		}
	}
}

func (t *Tracker) recheckSweep(ctx context.Context, pool HLSURLLookup, client *http.Client) {
	for _, contentID := range t.lowScoring(recheckThreshold) {
		for i := 0; i < recheckTries; i++ {
			if ctx.Err() != nil {
				return
			}
			t.recheckOne(ctx, pool, client, contentID)

			gap := recheckTrySpacing
			if i == recheckTries-1 {
				gap = recheckSpacing
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(gap):
			}
		}
	}
}

func (t *Tracker) recheckOne(ctx context.Context, pool HLSURLLookup, client *http.Client, contentID string) {
	playlistURL, err := pool.GetHLSURL(ctx, contentID)
	if err != nil {
		t.Observe(contentID, "", true)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		t.Observe(contentID, "", true)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Observe(contentID, "", true)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Observe(contentID, "", true)
		return
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Observe(contentID, "", true)
		return
	}
	t.Observe(contentID, string(body), false)
}

// lowScoring returns every observed content-id currently scored below
// threshold. Content-ids the Tracker has never observed are not included.
func (t *Tracker) lowScoring(threshold int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byID))
	for id, q := range t.byID {
		if q.Score < threshold {
			out = append(out, id)
		}
	}
	return out
}
