package configstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acerestreamer/gateway/internal/config"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOpen_MissingFileStartsFromDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := s.Get()
	want := config.Default()
	if got.ListenAddr != want.ListenAddr || got.InstanceDir != want.InstanceDir {
		t.Errorf("got %+v, want default %+v", got, want)
	}
}

func TestReplace_PersistsAndBacksUpPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := validConfig()
	first.ListenAddr = ":9000"
	if err := s.Replace(first, fixedNow(time.Unix(1700000000, 0))); err != nil {
		t.Fatalf("first Replace: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	second := validConfig()
	second.ListenAddr = ":9001"
	if err := s.Replace(second, fixedNow(time.Unix(1700000100, 0))); err != nil {
		t.Fatalf("second Replace: %v", err)
	}

	backups, err := os.ReadDir(filepath.Join(dir, "config_backups"))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("got %d backup files, want 1: %v", len(backups), backups)
	}

	if s.Get().ListenAddr != ":9001" {
		t.Errorf("Get().ListenAddr = %q, want :9001", s.Get().ListenAddr)
	}
}

func TestReplace_InvalidConfigLeavesStoreUnchanged(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	before := s.Get()

	bad := validConfig()
	bad.UMEAddress = "not-a-url"
	if err := s.Replace(bad, fixedNow(time.Now())); err == nil {
		t.Fatal("expected validation error")
	}

	after := s.Get()
	if after.UMEAddress != before.UMEAddress {
		t.Errorf("config mutated despite validation failure: %+v", after)
	}
}

func validConfig() config.AppConfig {
	cfg := config.Default()
	cfg.ExternalOrigin = "http://gw.example"
	cfg.UMEAddress = "http://127.0.0.1:6878"
	return cfg
}
