// Package configstore holds the live AppConfig in memory and mediates every
// mutation path (admin API, Remote-Settings Fetcher) through a single
// choke point: validate, back up the previous document, write the new one,
// swap the in-memory copy. Readers never block a reader; writers are
// serialised by mu.
package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acerestreamer/gateway/internal/config"
)

// Store is the single owner of the process's AppConfig.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg config.AppConfig
}

// Open loads path (if present) into a Store; a missing file starts from
// config.Default().
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Store{path: path, cfg: config.Default()}, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configstore: load %s: %w", path, err)
	}
	return &Store{path: path, cfg: cfg}, nil
}

// Get returns a copy of the current config.
func (s *Store) Get() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace validates next, writes a timestamped backup of the current
// document, persists next to disk, and swaps it in. On validation failure
// the store is left untouched and the previous config stays in force, per
// the error handling design's "config mutation keeps the old config"
// guarantee. now is injected so callers (and their tests) control the
// backup file's timestamp suffix.
func (s *Store) Replace(next config.AppConfig, now func() time.Time) error {
	if err := config.Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backupLocked(now()); err != nil {
		return fmt.Errorf("configstore: backup: %w", err)
	}
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

func (s *Store) backupLocked(ts time.Time) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil // nothing to back up on first write
	}
	dir := filepath.Join(filepath.Dir(s.path), "config_backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	current, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("config-%s.yaml", ts.UTC().Format("20060102T150405.000000000Z"))
	return os.WriteFile(filepath.Join(dir, name), current, 0o600)
}

func (s *Store) writeLocked(cfg config.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("configstore: marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("configstore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("configstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("configstore: write: %w", writeErr)
		}
		return fmt.Errorf("configstore: close: %w", closeErr)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("configstore: rename: %w", err)
	}
	return nil
}
