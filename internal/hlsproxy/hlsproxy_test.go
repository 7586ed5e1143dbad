package hlsproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakePool struct {
	url string
	err error
}

func (f *fakePool) GetHLSURL(ctx context.Context, contentID string) (string, error) {
	return f.url, f.err
}

type fakeResolver struct{}

func (fakeResolver) ResolveContentID(ctx context.Context, idOrInfohash string) (string, bool) {
	return idOrInfohash, true
}

type fakeTokens struct{ ok bool }

func (f fakeTokens) Verify(token string) bool { return f.ok }

type fakeQuality struct {
	observations []string
}

func (f *fakeQuality) Observe(contentID, playlistBody string, failed bool) {
	f.observations = append(f.observations, playlistBody)
}

func newTestProxy(pool PoolLookup, externalBase, upstreamBase string) (*Proxy, *fakeQuality) {
	fq := &fakeQuality{}
	p := New(pool, fakeResolver{}, fakeTokens{ok: true}, fq, externalBase, upstreamBase, zerolog.Nop())
	return p, fq
}

func TestRewriteURI_rewritesUpstreamPrefixAndStampsToken(t *testing.T) {
	p, _ := newTestProxy(&fakePool{}, "http://gw.example", "http://localhost:6878")
	id := strings.Repeat("a", 40)
	in := "http://localhost:6878/ace/c/" + id + "/1.ts"
	got := p.rewriteURI(in, "T")
	want := "http://gw.example/ace/c/" + id + "/1.ts?token=T"
	if got != want {
		t.Errorf("rewriteURI = %q, want %q", got, want)
	}
}

func TestRewriteURI_noTokenWhenEmpty(t *testing.T) {
	p, _ := newTestProxy(&fakePool{}, "http://gw.example", "http://localhost:6878")
	in := "http://localhost:6878/hls/c/foo/2.ts"
	got := p.rewriteURI(in, "")
	if strings.Contains(got, "token=") {
		t.Errorf("expected no token query param, got %q", got)
	}
}

func TestRewriteURI_leavesUnrelatedURLsAlone(t *testing.T) {
	p, _ := newTestProxy(&fakePool{}, "http://gw.example", "http://localhost:6878")
	in := "http://cdn.example/unrelated/thing.ts"
	got := p.rewriteURI(in, "T")
	if got != in {
		t.Errorf("rewriteURI should not touch unmatched URLs, got %q", got)
	}
}

func TestServePlaylist_rewritesAndDropsExtXMedia(t *testing.T) {
	id := strings.Repeat("b", 40)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n" +
			"#EXT-X-VERSION:3\n" +
			"#EXT-X-TARGETDURATION:10\n" +
			"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"aud\",URI=\"audio.m3u8\"\n" +
			"#EXTINF:10.0,\n" +
			"http://127.0.0.1:6878/ace/c/" + id + "/1.ts\n"))
	}))
	defer upstream.Close()

	p, fq := newTestProxy(&fakePool{url: upstream.URL + "/ace/manifest.m3u8"}, "http://gw.example", "http://127.0.0.1:6878")

	req := httptest.NewRequest(http.MethodGet, "/hls/"+id+"?token=T", nil)
	rr := httptest.NewRecorder()
	p.ServePlaylist(rr, req, id, "T")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if strings.Contains(body, "127.0.0.1:6878") {
		t.Errorf("rewritten playlist still references upstream host: %s", body)
	}
	if strings.Contains(body, "#EXT-X-MEDIA") {
		t.Errorf("rewritten playlist still contains an EXT-X-MEDIA line: %s", body)
	}
	if !strings.Contains(body, "gw.example") || !strings.Contains(body, "token=T") {
		t.Errorf("rewritten playlist missing gateway origin/token: %s", body)
	}
	if len(fq.observations) != 1 {
		t.Fatalf("expected exactly one quality observation, got %d", len(fq.observations))
	}
}

func TestServePlaylist_rejectsBadToken(t *testing.T) {
	p := New(&fakePool{}, fakeResolver{}, fakeTokens{ok: false}, &fakeQuality{}, "http://gw.example", "http://127.0.0.1:6878", zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/hls/"+strings.Repeat("c", 40), nil)
	rr := httptest.NewRecorder()
	p.ServePlaylist(rr, req, strings.Repeat("c", 40), "bad")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestServePlaylist_rejectsMalformedID(t *testing.T) {
	p, _ := newTestProxy(&fakePool{}, "http://gw.example", "http://127.0.0.1:6878")
	req := httptest.NewRequest(http.MethodGet, "/hls/not-an-id", nil)
	rr := httptest.NewRecorder()
	p.ServePlaylist(rr, req, "not-an-id", "T")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestServePlaylist_nonPlaylistBodyIs400(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a playlist"}`))
	}))
	defer upstream.Close()

	id := strings.Repeat("d", 40)
	p, fq := newTestProxy(&fakePool{url: upstream.URL}, "http://gw.example", "http://127.0.0.1:6878")
	req := httptest.NewRequest(http.MethodGet, "/hls/"+id, nil)
	rr := httptest.NewRecorder()
	p.ServePlaylist(rr, req, id, "T")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if len(fq.observations) != 1 {
		t.Errorf("expected a failed quality observation, got %d", len(fq.observations))
	}
}

func TestServeSegment_forcesContentTypeOnAceC(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("tsdata"))
	}))
	defer upstream.Close()

	p, _ := newTestProxy(&fakePool{}, "http://gw.example", upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/ace/c/foo//1.ts", nil)
	rr := httptest.NewRecorder()
	p.ServeSegment(rr, req, "/ace/c/foo//1.ts", "T")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/MP2T" {
		t.Errorf("Content-Type = %q, want video/MP2T", ct)
	}
	if rr.Body.String() != "tsdata" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestResolveXCStream_stripsExtensionAndResolves(t *testing.T) {
	id := strings.Repeat("e", 40)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXTINF:10.0,\n1.ts\n"))
	}))
	defer upstream.Close()

	p, _ := newTestProxy(&fakePool{url: upstream.URL}, "http://gw.example", "http://127.0.0.1:6878")
	req := httptest.NewRequest(http.MethodGet, "/live/user/pass/42.m3u8", nil)
	rr := httptest.NewRecorder()
	p.ResolveXCStream(rr, req, "42.m3u8", "T", func(xcID int) (string, bool) {
		if xcID != 42 {
			t.Fatalf("xcID = %d, want 42", xcID)
		}
		return id, true
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestDedupSlashes(t *testing.T) {
	if got := dedupSlashes("/ace/c//foo///bar.ts"); got != "/ace/c/foo/bar.ts" {
		t.Errorf("dedupSlashes = %q", got)
	}
}
