package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv_defaults(t *testing.T) {
	os.Clearenv()
	c, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if c.PoolMaxSessions != 4 {
		t.Errorf("PoolMaxSessions default = %d, want 4", c.PoolMaxSessions)
	}
	if c.UMEAddress != "http://127.0.0.1:6878" {
		t.Errorf("UMEAddress default = %q", c.UMEAddress)
	}
}

func TestLoadEnv_overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("GATEWAY_POOL_MAX_SESSIONS", "8")
	os.Setenv("GATEWAY_UME_ADDRESS", "http://10.0.0.5:6878/")
	os.Setenv("GATEWAY_EXTERNAL_ORIGIN", "https://gw.example/")
	c, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if c.PoolMaxSessions != 8 {
		t.Errorf("PoolMaxSessions = %d, want 8", c.PoolMaxSessions)
	}
	if c.UMEAddress != "http://10.0.0.5:6878" {
		t.Errorf("UMEAddress = %q, want trailing slash trimmed", c.UMEAddress)
	}
	if c.ExternalOrigin != "https://gw.example" {
		t.Errorf("ExternalOrigin = %q, want trailing slash trimmed", c.ExternalOrigin)
	}
}

func TestLoadFile_envOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "listen_addr: \":9000\"\npool_max_sessions: 2\nume_address: \"http://ume:6878\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Clearenv()
	os.Setenv("GATEWAY_POOL_MAX_SESSIONS", "6")
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want file value preserved", c.ListenAddr)
	}
	if c.PoolMaxSessions != 6 {
		t.Errorf("PoolMaxSessions = %d, want env overlay 6", c.PoolMaxSessions)
	}
}

func TestValidate_rejectsBadPoolSize(t *testing.T) {
	cfg := Default()
	cfg.PoolMaxSessions = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for pool_max_sessions=0")
	}
}

func TestValidate_rejectsBadUMEAddress(t *testing.T) {
	cfg := Default()
	cfg.UMEAddress = "not-a-url"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for malformed ume_address")
	}
}

func TestValidate_ok(t *testing.T) {
	cfg := Default()
	cfg.InstanceDir = t.TempDir()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
