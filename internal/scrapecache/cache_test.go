package scrapecache

import (
	"testing"
	"time"
)

func TestSaveLoad(t *testing.T) {
	c := New(t.TempDir())
	url := "http://example.com/feed.m3u"
	if c.Load(url) != nil {
		t.Fatal("expected nil before save")
	}
	if err := c.Save(url, []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := c.Load(url)
	if string(got) != "hello" {
		t.Errorf("Load = %q", got)
	}
}

func TestIsFresh(t *testing.T) {
	c := New(t.TempDir())
	url := "http://example.com/a"
	if c.IsFresh(url, time.Hour) {
		t.Error("missing entry should not be fresh")
	}
	if err := c.Save(url, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if !c.IsFresh(url, time.Hour) {
		t.Error("just-written entry should be fresh")
	}
	if c.IsFresh(url, 0) {
		t.Error("zero TTL should never be fresh")
	}
}
