package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sentinel is the watchdog file announcing an intentional unclean shutdown.
// Its presence is what matters; the content is a 4-byte little-endian unix
// timestamp kept for diagnostics.
type Sentinel struct {
	path string
	now  func() time.Time
}

// NewSentinel returns a sentinel at path.
func NewSentinel(path string) *Sentinel {
	return &Sentinel{path: path, now: time.Now}
}

// Mark writes the sentinel and syncs it to disk.
func (s *Sentinel) Mark() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("store: create sentinel dir: %w", err)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(s.now().Unix())) //nolint:gosec // diagnostic timestamp only.

	//nolint:gosec // path comes from configuration.
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("store: open sentinel: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("store: write sentinel: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("store: sync sentinel: %w", err)
	}
	return f.Close()
}

// Clear removes the sentinel. A missing file is not an error.
func (s *Sentinel) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: remove sentinel: %w", err)
	}
	return nil
}

// MarkedAt returns when the sentinel was written, and false when it is absent.
func (s *Sentinel) MarkedAt() (time.Time, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: read sentinel: %w", err)
	}
	if len(data) < 4 {
		return time.Time{}, true, nil
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(data)), 0), true, nil
}
