package epg

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writeTestFile: %v", err)
	}
}

func indexOf(haystack, needle string) int {
	return strings.Index(haystack, needle)
}

// programmesBlock returns n <programme> elements for tvgID, each with a
// description, spaced an hour apart starting at a fixed future instant so
// tests are deterministic regardless of wall-clock time.
func programmesBlock(tvgID string, n int) string {
	var b strings.Builder
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Hour).Format(xmltvTimeLayout)
		fmt.Fprintf(&b, `<programme channel="%s" start="%s"><title>Show %d</title><desc>Description text</desc></programme>`, tvgID, start, i)
	}
	return b.String()
}

func TestMerger_NoteTVGID_DedupesAndNormalizes(t *testing.T) {
	m := New(nil, "", zerolog.Nop())
	m.NoteTVGID("espn.us")
	m.NoteTVGID("espn.us")
	m.NoteTVGID("US | CNN International")
	ids := m.interestSnapshot()
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}
	if ids[0] != "espn.us" || ids[1] != "CNN International.us" {
		t.Errorf("ids = %v", ids)
	}
}

func TestMerger_RunRefreshesAndCondenses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<tv><channel id="espn.us"><display-name>ESPN</display-name></channel>` +
			programmesBlock("espn.us", 6) + `</tv>`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := &Source{URL: srv.URL, SavedFilePath: dir + "/espn.xml"}
	m := New([]*Source{src}, "acerestreamer", zerolog.Nop())
	m.settle = time.Millisecond
	m.NoteTVGID("espn.us")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Condensed() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	doc := m.Condensed()
	if doc == nil {
		t.Fatal("expected a condensed document after a refresh pass")
	}
	if !strings.Contains(string(doc), "espn.us") {
		t.Errorf("condensed doc missing espn.us: %s", doc)
	}
}
