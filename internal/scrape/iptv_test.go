package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPTVScraper_Scrape(t *testing.T) {
	id := "a" + repeatChar('a', 39)
	ih := "b" + repeatChar('b', 39)
	body := `#EXTM3U
#EXTINF:-1 tvg-id="espn.us" group-title="Sports" tvg-logo="http://x/logo.png" x-last-found="2026-01-01T00:00:00Z",ESPN
http://127.0.0.1:6878/ace/manifest.m3u8?id=` + id + `&pid=1
#EXTINF:-1 group-title="News",CNN International [UK]
http://127.0.0.1:6878/ace/manifest.m3u8?infohash=` + ih + `
#EXTINF:-1,Excluded Channel
http://127.0.0.1:6878/ace/manifest.m3u8?id=` + id + `
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	src := ScrapeSource{
		Type: "iptv",
		Name: "test-iptv",
		URL:  srv.URL,
		TitleFilter: TitleFilter{
			AlwaysExclude: []string{"excluded"},
		},
	}
	s := newIPTVScraper(src, srv.Client())
	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d streams, want 2: %+v", len(got), got)
	}
	if got[0].ContentID != id || got[0].TVGID != "espn.us" || got[0].GroupTitle != "Sports" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Infohash != ih || got[1].TVGID != "CNN International.uk" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestIPTVScraper_RejectsUnmatchedURL(t *testing.T) {
	body := "#EXTINF:-1,Channel\nhttp://example.com/not-a-ume-url\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newIPTVScraper(ScrapeSource{Type: "iptv", Name: "x", URL: srv.URL}, srv.Client())
	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no streams for an unmatched URL, got %+v", got)
	}
}

func repeatChar(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
