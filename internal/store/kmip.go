package store

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
)

// KMIPStore caches KMIP-managed keys in kmip.json. Enabled is fixed at
// construction; when disabled every operation except Update is a no-op.
type KMIPStore struct {
	mu      sync.Mutex
	path    string
	enabled bool
	ready   bool
}

// NewKMIPStore returns a key store rooted at dir.
func NewKMIPStore(dir string, enabled bool) *KMIPStore {
	return &KMIPStore{path: filepath.Join(dir, "kmip.json"), enabled: enabled}
}

func (s *KMIPStore) Enabled(context.Context) (bool, error) {
	return s.enabled, nil
}

// Keys returns the cached keys.
func (s *KMIPStore) Keys(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update merges keys received from the peer into the cache.
func (s *KMIPStore) Update(_ context.Context, keys map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	maps.Copy(current, keys)
	if err := writeJSONAtomically(s.path, current); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

// Initialize creates the key cache on first use.
func (s *KMIPStore) Initialize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready || !s.enabled {
		return nil
	}

	current, err := s.load()
	if err != nil {
		return err
	}
	if err := writeJSONAtomically(s.path, current); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	s.ready = true
	return nil
}

func (s *KMIPStore) load() (map[string]string, error) {
	keys := make(map[string]string)
	if _, err := readJSON(s.path, &keys); err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	return keys, nil
}
