package xcfrontdoor

import (
	"strings"
	"testing"
	"time"

	"github.com/acerestreamer/gateway/internal/store"
)

func TestAlternateTitles_SuffixesDuplicatesByXCIDAscending(t *testing.T) {
	entries := []store.CatalogEntry{
		{XCID: 3, Title: "Sports One"},
		{XCID: 1, Title: "Sports One"},
		{XCID: 2, Title: "News"},
	}
	got := alternateTitles(entries)
	if got[1] != "Sports One #1" {
		t.Errorf("xc_id 1 = %q, want Sports One #1", got[1])
	}
	if got[3] != "Sports One #2" {
		t.Errorf("xc_id 3 = %q, want Sports One #2", got[3])
	}
	if got[2] != "News" {
		t.Errorf("xc_id 2 = %q, want unchanged News", got[2])
	}
}

func TestBuildPlaylist_EmitsExpectedLineShape(t *testing.T) {
	now := time.Unix(1700000000, 0)
	entries := []store.CatalogEntry{
		{XCID: 1, ContentID: "abc123", Title: "Sports One", TVGID: "sports1.us", GroupTitle: "Sports", LastScrapedTime: now},
	}
	body := string(BuildPlaylist(entries, "http://gw.example/", "TOK"))
	if !strings.HasPrefix(body, "#EXTM3U\n") {
		t.Fatalf("missing #EXTM3U header: %q", body)
	}
	if !strings.Contains(body, `tvg-id="sports1.us"`) {
		t.Errorf("missing tvg-id attr: %q", body)
	}
	if !strings.Contains(body, `group-title="Sports"`) {
		t.Errorf("missing group-title attr: %q", body)
	}
	if !strings.Contains(body, `x-last-found="1700000000"`) {
		t.Errorf("missing x-last-found attr: %q", body)
	}
	if !strings.Contains(body, ", Sports One\n") {
		t.Errorf("missing display title: %q", body)
	}
	if !strings.Contains(body, "http://gw.example/hls/abc123?token=TOK\n") {
		t.Errorf("missing stream line: %q", body)
	}
	if !strings.Contains(body, "http://gw.example/tvg-logo/sports-one?token=TOK") {
		t.Errorf("missing tvg-logo line: %q", body)
	}
}

func TestBuildPlaylist_NoTokenOmitsQueryParam(t *testing.T) {
	entries := []store.CatalogEntry{{XCID: 1, ContentID: "abc", Title: "X"}}
	body := string(BuildPlaylist(entries, "http://gw.example", ""))
	if strings.Contains(body, "token=") {
		t.Errorf("expected no token param: %q", body)
	}
}
