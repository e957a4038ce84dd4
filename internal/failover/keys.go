package failover

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Alert kinds raised when key replication fails.
const (
	AlertKeysSyncFailed     = "FailoverKeysSyncFailed"
	AlertKMIPKeysSyncFailed = "FailoverKMIPKeysSyncFailed"
)

// KeyCache holds dataset passphrases keyed by "pool/dataset". Every
// read-modify-write-then-replicate sequence runs inside With, so two
// mutations can never push interleaved key sets to the peer.
type KeyCache struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[string]string)}
}

// With runs fn with exclusive access to the cache contents.
func (c *KeyCache) With(fn func(keys map[string]string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.keys)
}

// Snapshot returns a copy of the cached keys.
func (c *KeyCache) Snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.keys)
}

// ForPool returns the keys of pool and of every dataset below it.
func (c *KeyCache) ForPool(pool string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for name, key := range c.keys {
		if name == pool || strings.HasPrefix(name, pool+"/") {
			out[name] = key
		}
	}
	return out
}

// removeTree deletes name and its descendants from keys.
func removeTree(keys map[string]string, name string) {
	for k := range keys {
		if k == name || strings.HasPrefix(k, name+"/") {
			delete(keys, k)
		}
	}
}

// EncryptionKeys returns a copy of the cached passphrases.
func (s *Service) EncryptionKeys() map[string]string {
	return s.keys.Snapshot()
}

// UpdateEncryptionKeys stores passphrases and, when sync is set, replicates
// the full key set to the peer while still holding the cache.
func (s *Service) UpdateEncryptionKeys(ctx context.Context, keys map[string]string, sync bool) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: no datasets to update", ErrInvalidArgument)
	}
	return s.keys.With(func(cache map[string]string) error {
		maps.Copy(cache, keys)
		if sync {
			s.pushKeysLocked(ctx, cache)
		}
		return nil
	})
}

// RemoveEncryptionKeys drops datasets (and their children) from the cache.
func (s *Service) RemoveEncryptionKeys(ctx context.Context, datasets []string, sync bool) error {
	if len(datasets) == 0 {
		return fmt.Errorf("%w: no datasets to remove", ErrInvalidArgument)
	}
	return s.keys.With(func(cache map[string]string) error {
		for _, name := range datasets {
			removeTree(cache, name)
		}
		if sync {
			s.pushKeysLocked(ctx, cache)
		}
		return nil
	})
}

// ReplaceEncryptionKeys installs the key set pushed by the peer.
func (s *Service) ReplaceEncryptionKeys(keys map[string]string) {
	_ = s.keys.With(func(cache map[string]string) error {
		clear(cache)
		maps.Copy(cache, keys)
		return nil
	})
}

// SyncKeysToRemote pushes the cached keys and KMIP-managed keys to the peer.
// It does nothing unless this node is licensed, MASTER, and the peer answers.
func (s *Service) SyncKeysToRemote(ctx context.Context) error {
	return s.keys.With(func(cache map[string]string) error {
		s.pushKeysLocked(ctx, cache)
		return nil
	})
}

// SyncKeysFromRemote asks the MASTER peer to push its keys here. It does
// nothing unless this node is licensed and BACKUP.
func (s *Service) SyncKeysFromRemote(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "failover.SyncKeysFromRemote")
	defer span.End()

	licensed, err := s.Licensed(ctx)
	if err != nil || !licensed {
		return err
	}
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if st != StatusBackup {
		return nil
	}

	pctx, cancel := s.peerContext(ctx)
	defer cancel()
	if err := s.peer.Ping(pctx); err != nil {
		s.logger.Error("failed to contact active controller when syncing encryption keys", "error", err)
		return nil
	}
	if err := s.peer.SyncKeysToRemote(pctx); err != nil {
		s.logger.Error("failed to sync keys from active controller", "error", err)
		spanRecordError(span, err)
	}
	return nil
}

// pushKeysLocked replicates keys to the peer. The caller holds the cache.
// Alerts track the health of the latest attempt.
func (s *Service) pushKeysLocked(ctx context.Context, keys map[string]string) {
	ctx, span := s.startSpan(ctx, "failover.PushKeys", attribute.Int("failover.keys", len(keys)))
	defer span.End()

	licensed, err := s.Licensed(ctx)
	if err != nil {
		s.logger.Warn("failed to read license before key sync", "error", err)
		return
	}
	if !licensed {
		return
	}
	st, err := s.Status(ctx)
	if err != nil {
		s.logger.Warn("failed to read status before key sync", "error", err)
		return
	}
	if st != StatusMaster {
		return
	}

	pctx, cancel := s.peerContext(ctx)
	defer cancel()
	if err := s.peer.Ping(pctx); err != nil {
		s.logger.Error("failed to contact standby controller when syncing encryption keys", "error", err)
		return
	}

	if err := s.peer.PutEncryptionKeys(pctx, maps.Clone(keys)); err != nil {
		s.metrics.IncFailoverKeySync(s.nodeID, "zfs", "error")
		s.logger.Error("failed to sync keys with standby controller", "error", err)
		spanRecordError(span, err)
		s.alert(ctx, AlertKeysSyncFailed, nil)
	} else {
		s.metrics.IncFailoverKeySync(s.nodeID, "zfs", "ok")
		s.clearAlert(ctx, AlertKeysSyncFailed)
	}

	if s.kmip == nil {
		return
	}
	if err := s.pushKMIPKeys(pctx); err != nil {
		s.metrics.IncFailoverKeySync(s.nodeID, "kmip", "error")
		s.logger.Error("failed to sync KMIP keys with standby controller", "error", err)
		s.alert(ctx, AlertKMIPKeysSyncFailed, map[string]string{"error": err.Error()})
	} else {
		s.metrics.IncFailoverKeySync(s.nodeID, "kmip", "ok")
		s.clearAlert(ctx, AlertKMIPKeysSyncFailed)
	}
}

func (s *Service) pushKMIPKeys(ctx context.Context) error {
	keys, err := s.kmip.Keys(ctx)
	if err != nil {
		return err
	}
	return s.peer.PutKMIPKeys(ctx, keys)
}

func (s *Service) alert(ctx context.Context, kind string, args map[string]string) {
	if err := s.alerts.OneshotCreate(ctx, kind, args); err != nil {
		s.logger.Warn("failed to create alert", "alert", kind, "error", err)
	}
}

func (s *Service) clearAlert(ctx context.Context, kind string) {
	if err := s.alerts.OneshotDelete(ctx, kind); err != nil {
		s.logger.Warn("failed to delete alert", "alert", kind, "error", err)
	}
}
