package failover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// smallFileChunk is the largest piece of a file sent in one peer call.
const smallFileChunk = 10 << 20

// Suffixes of staged files written by the peer.
const (
	databaseSyncSuffix  = ".sync"
	cacheFileSyncSuffix = ".overwrite"
)

// peerRebootDelay is how long the peer waits before rebooting after a sync.
const peerRebootDelay = 2 * time.Second

// SyncToPeer replicates the configuration database, encryption keys and
// small files to the peer, then optionally reboots it.
func (s *Service) SyncToPeer(ctx context.Context, reboot bool) error {
	ctx, span := s.startSpan(ctx, "failover.SyncToPeer", attribute.Bool("failover.reboot", reboot))
	defer span.End()

	s.logger.Debug("syncing database to standby controller")
	if err := s.SendDatabase(ctx); err != nil {
		spanRecordError(span, err)
		return err
	}

	s.logger.Debug("syncing cached encryption keys to standby controller")
	if err := s.SyncKeysToRemote(ctx); err != nil {
		spanRecordError(span, err)
		return err
	}

	s.logger.Debug("syncing small files to standby controller", "files", s.opts.SyncFiles)
	for _, path := range s.opts.SyncFiles {
		if err := s.SendSmallFile(ctx, path, ""); err != nil {
			spanRecordError(span, err)
			return err
		}
	}
	if s.opts.CacheFilePath != "" {
		if err := s.SendSmallFile(ctx, s.opts.CacheFilePath, s.opts.CacheFilePath+cacheFileSyncSuffix); err != nil {
			spanRecordError(span, err)
			return err
		}
		if err := s.peer.CacheFileSetup(ctx, CacheFileSync); err != nil {
			spanRecordError(span, err)
			return fmt.Errorf("failover: peer cache-file setup: %w", err)
		}
	}

	if reboot {
		if err := s.peer.Reboot(ctx, peerRebootDelay); err != nil {
			spanRecordError(span, err)
			return fmt.Errorf("failover: reboot peer: %w", err)
		}
	}
	return nil
}

// SyncFromPeer asks the peer to replicate its database and files here.
func (s *Service) SyncFromPeer(ctx context.Context) error {
	if err := s.peer.SyncToPeer(ctx, false); err != nil {
		return fmt.Errorf("failover: sync from peer: %w", err)
	}
	return nil
}

// SendDatabase pushes the configuration database to a staging path on the
// peer and asks the peer to activate it.
func (s *Service) SendDatabase(ctx context.Context) error {
	if s.opts.DatabasePath == "" {
		return nil
	}
	if err := s.SendSmallFile(ctx, s.opts.DatabasePath, s.opts.DatabasePath+databaseSyncSuffix); err != nil {
		return err
	}
	if err := s.peer.ActivateDatabase(ctx); err != nil {
		return fmt.Errorf("failover: activate database on peer: %w", err)
	}
	return nil
}

// SendSmallFile pushes path to dest on the peer in chunks, preserving the
// file mode. An empty dest means the same path. Missing files are skipped.
func (s *Service) SendSmallFile(ctx context.Context, path, dest string) error {
	if dest == "" {
		dest = path
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failover: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failover: stat %s: %w", path, err)
	}
	mode := uint32(info.Mode().Perm())

	buf := make([]byte, smallFileChunk)
	first := true
	for {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 || first {
			chunk := FileChunk{Path: dest, Data: slices.Clone(buf[:n]), Mode: mode, Append: !first}
			if err := s.peer.ReceiveFile(ctx, chunk); err != nil {
				return fmt.Errorf("failover: send %s: %w", path, err)
			}
			first = false
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("failover: read %s: %w", path, rerr)
		}
	}
}

// ReceiveFile writes a chunk pushed by the peer. Only allow-listed paths
// are accepted.
func (s *Service) ReceiveFile(_ context.Context, chunk FileChunk) error {
	path := filepath.Clean(chunk.Path)
	if !slices.Contains(s.receivePaths(), path) {
		return fmt.Errorf("%w: %s", ErrPathNotAllowed, chunk.Path)
	}

	mode := fs.FileMode(chunk.Mode).Perm()
	if mode == 0 {
		mode = 0o600
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failover: create dir for %s: %w", path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if chunk.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return fmt.Errorf("failover: open %s: %w", path, err)
	}
	if _, err := f.Write(chunk.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failover: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failover: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failover: close %s: %w", path, err)
	}
	return os.Chmod(path, mode)
}

// ActivateDatabase replaces the configuration database with the staged copy
// received from the peer.
func (s *Service) ActivateDatabase(context.Context) error {
	if s.opts.DatabasePath == "" {
		return fmt.Errorf("%w: no database configured", ErrInvalidArgument)
	}
	if err := os.Rename(s.opts.DatabasePath+databaseSyncSuffix, s.opts.DatabasePath); err != nil {
		return fmt.Errorf("failover: activate database: %w", err)
	}
	return nil
}

func (s *Service) receivePaths() []string {
	out := make([]string, 0, len(s.opts.ReceiveAllowList)+2)
	for _, p := range s.opts.ReceiveAllowList {
		out = append(out, filepath.Clean(p))
	}
	if s.opts.DatabasePath != "" {
		out = append(out, filepath.Clean(s.opts.DatabasePath+databaseSyncSuffix))
	}
	if s.opts.CacheFilePath != "" {
		out = append(out, filepath.Clean(s.opts.CacheFilePath+cacheFileSyncSuffix))
	}
	return out
}
