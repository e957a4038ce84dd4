package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// FlagStore keeps boolean key/value flags in flags.json.
type FlagStore struct {
	mu   sync.Mutex
	path string
}

// NewFlagStore returns a flag store rooted at dir.
func NewFlagStore(dir string) *FlagStore {
	return &FlagStore{path: filepath.Join(dir, "flags.json")}
}

// Flag returns the value of key; unknown keys are false.
func (s *FlagStore) Flag(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return false, err
	}
	return flags[key], nil
}

// SetFlag stores value under key. False values are removed.
func (s *FlagStore) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return err
	}
	if value {
		flags[key] = true
	} else {
		delete(flags, key)
	}
	if err := writeJSONAtomically(s.path, flags); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FlagStore) load() (map[string]bool, error) {
	flags := make(map[string]bool)
	if _, err := readJSON(s.path, &flags); err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	return flags, nil
}
