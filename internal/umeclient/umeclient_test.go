package umeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"version":"3.2.3"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	v, err := c.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v != "3.2.3" {
		t.Errorf("version = %q, want 3.2.3", v)
	}
}

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"playback_url":"http://x/ace/c/a/master.m3u8","stat_url":"http://x/stat","command_url":"http://x/cmd","infohash":"deadbeef"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	mw, err := c.StartSession(context.Background(), "aaaa", 1)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if mw.PlaybackURL == "" || mw.StatURL == "" || mw.CommandURL == "" {
		t.Errorf("incomplete middleware info: %+v", mw)
	}
	if mw.Infohash != "deadbeef" {
		t.Errorf("Infohash = %q", mw.Infohash)
	}
}

func TestStartSession_upstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"no free slots"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if _, err := c.StartSession(context.Background(), "aaaa", 1); err == nil {
		t.Fatal("expected error for ume error response")
	}
}

func TestContentIDForInfohash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"content_id":"` + repeat40("a") + `"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	got, err := c.ContentIDForInfohash(context.Background(), repeat40("b"))
	if err != nil {
		t.Fatalf("ContentIDForInfohash: %v", err)
	}
	if got != repeat40("a") {
		t.Errorf("content id = %q", got)
	}
}

func TestStopSession_noop(t *testing.T) {
	c := New("http://unused", http.DefaultClient)
	if err := c.StopSession(context.Background(), ""); err != nil {
		t.Errorf("StopSession with empty url should be a no-op, got %v", err)
	}
}

func repeat40(s string) string {
	out := make([]byte, 0, 40)
	for len(out) < 40 {
		out = append(out, s...)
	}
	return string(out[:40])
}
