package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIScraper_Scrape(t *testing.T) {
	ih := "c" + repeatChar('c', 39)
	body := `[
		{"infohash": "` + ih + `", "name": "Sports Feed [US]", "availability": 0.9, "availability_updated_at": "2026-01-01T00:00:00Z", "categories": ["Sports"]},
		{"infohash": "", "name": "Missing Infohash", "availability": 1},
		{"infohash": "d0000000000000000000000000000000000000", "name": "Blocked Adult Channel"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	src := ScrapeSource{
		Type: "api",
		Name: "test-api",
		URL:  srv.URL,
		TitleFilter: TitleFilter{
			AlwaysExclude: []string{"adult"},
		},
	}
	s := newAPIScraper(src, srv.Client())
	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(got), got)
	}
	if got[0].Infohash != ih || got[0].GroupTitle != "Sports" || got[0].TVGID != "Sports Feed.us" {
		t.Errorf("entry = %+v", got[0])
	}
}
