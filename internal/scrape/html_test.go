package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMLScraper_Scrape(t *testing.T) {
	id1 := "a" + repeatChar('a', 39)
	id2 := "b" + repeatChar('b', 39)
	page := `<html><body>
<nav><a href="/home">Home</a></nav>
<div class="channel-row">
  <span class="title">Sports One</span>
  <a href="http://127.0.0.1:6878/ace/getstream?id=` + id1 + `">Watch</a>
  <span class="site-chrome">Ad Free</span>
</div>
<div class="channel-row">
  <span class="title">News Two</span>
  <a href="http://127.0.0.1:6878/ace/getstream?id=` + id2 + `">Watch</a>
  <span class="site-chrome">Ad Free</span>
</div>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	src := ScrapeSource{
		Type: "html",
		Name: "test-html",
		URL:  srv.URL,
		HTMLFilter: HTMLFilter{
			TargetClass: "title",
		},
	}
	s, err := newHTMLScraper(src, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d streams, want 2: %+v", len(got), got)
	}
	titles := map[string]bool{got[0].Title: true, got[1].Title: true}
	if !titles["Sports One"] || !titles["News Two"] {
		t.Errorf("unexpected titles: %+v", got)
	}
}

func TestHTMLScraper_RejectsSiteWideChrome(t *testing.T) {
	id1 := "a" + repeatChar('a', 39)
	id2 := "b" + repeatChar('b', 39)
	page := `<html><body>
<div class="row"><span class="chrometext">Site Name</span><a href="http://127.0.0.1:6878/ace/getstream?id=` + id1 + `">x</a></div>
<div class="row"><span class="chrometext">Site Name</span><a href="http://127.0.0.1:6878/ace/getstream?id=` + id2 + `">x</a></div>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	src := ScrapeSource{
		Type:       "html",
		Name:       "chrome-test",
		URL:        srv.URL,
		HTMLFilter: HTMLFilter{TargetClass: "chrometext"},
	}
	s, err := newHTMLScraper(src, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected site-wide chrome to be rejected leaving no candidates, got %+v", got)
	}
}
