package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// ConfigStore keeps the failover configuration record in config.json.
type ConfigStore struct {
	mu       sync.Mutex
	path     string
	defaults failover.Config
}

// NewConfigStore returns a store rooted at dir. defaults is returned until a
// record is saved.
func NewConfigStore(dir string, defaults failover.Config) *ConfigStore {
	return &ConfigStore{path: filepath.Join(dir, "config.json"), defaults: defaults}
}

// Load returns the stored configuration or the defaults.
func (s *ConfigStore) Load(context.Context) (failover.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.defaults
	if _, err := readJSON(s.path, &cfg); err != nil {
		return failover.Config{}, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	return cfg, nil
}

// Save persists cfg.
func (s *ConfigStore) Save(_ context.Context, cfg failover.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSONAtomically(s.path, cfg); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}
