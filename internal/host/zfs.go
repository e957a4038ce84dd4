package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

const (
	defaultCacheFile = "/data/zfs/zpool.cache"
	overwriteSuffix  = ".overwrite"
)

// ManagedPool names a data pool this node may import.
type ManagedPool struct {
	Name string `yaml:"name"`
	GUID string `yaml:"guid"`
}

// ZFSOptions configures ZFS.
type ZFSOptions struct {
	Pools     []ManagedPool
	BootPool  string
	CacheFile string
	// KeyDir holds short-lived key files handed to zfs load-key.
	KeyDir string
}

// ZFS drives the zpool and zfs command line tools.
type ZFS struct {
	opts   ZFSOptions
	runner sysexec.Runner
	logger Logger
}

var _ failover.Storage = (*ZFS)(nil)

// NewZFS returns a ZFS storage adapter.
func NewZFS(opts ZFSOptions, runner sysexec.Runner, logger Logger) *ZFS {
	if opts.CacheFile == "" {
		opts.CacheFile = defaultCacheFile
	}
	if opts.KeyDir == "" {
		opts.KeyDir = os.TempDir()
	}
	return &ZFS{opts: opts, runner: runner, logger: logger}
}

// Pools returns the managed pools with their health, OFFLINE when not imported.
func (z *ZFS) Pools(ctx context.Context) ([]failover.Pool, error) {
	health, err := z.imported(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]failover.Pool, 0, len(z.opts.Pools))
	for _, p := range z.opts.Pools {
		status := failover.PoolOffline
		if h, ok := health[p.Name]; ok {
			status = failover.PoolStatus(h)
		}
		out = append(out, failover.Pool{Name: p.Name, GUID: p.GUID, Status: status})
	}
	return out, nil
}

// ImportedPools returns the imported pools other than the boot pool.
func (z *ZFS) ImportedPools(ctx context.Context) ([]string, error) {
	health, err := z.imported(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(health))
	for name := range health {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (z *ZFS) imported(ctx context.Context) (map[string]string, error) {
	out, err := z.runner.Output(ctx, "zpool", "list", "-H", "-o", "name,health")
	if err != nil {
		return nil, fmt.Errorf("zfs: list pools: %w", err)
	}
	pools := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == z.opts.BootPool {
			continue
		}
		pools[fields[0]] = fields[1]
	}
	return pools, nil
}

// Import imports the pool identified by guid without mounting datasets.
func (z *ZFS) Import(ctx context.Context, guid string, opts failover.ImportOptions) error {
	args := []string{"import", "-f", "-N", "-o", "cachefile=" + z.opts.CacheFile}
	if opts.UseCacheFile {
		if _, err := os.Stat(z.opts.CacheFile); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("zfs: import %s: cache-file missing: %w", guid, failover.ErrPoolNotFound)
		}
		args = append(args, "-c", z.opts.CacheFile)
	}
	if opts.MissingLog {
		args = append(args, "-m")
	}
	if opts.AltRoot != "" {
		args = append(args, "-R", opts.AltRoot)
	}
	args = append(args, guid)

	if _, err := z.runner.Output(ctx, "zpool", args...); err != nil {
		if isNoSuchPool(err) {
			return fmt.Errorf("zfs: import %s: %w", guid, failover.ErrPoolNotFound)
		}
		return fmt.Errorf("zfs: import %s: %w", guid, err)
	}
	return nil
}

func isNoSuchPool(err error) bool {
	var exitErr *sysexec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	msg := strings.ToLower(exitErr.Stderr)
	return strings.Contains(msg, "no such pool")
}

// Export exports a pool.
func (z *ZFS) Export(ctx context.Context, name string, force bool) error {
	args := []string{"export"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	if _, err := z.runner.Output(ctx, "zpool", args...); err != nil {
		return fmt.Errorf("zfs: export %s: %w", name, err)
	}
	return nil
}

// SetCacheFile points the pool's cachefile property at the managed cache-file.
func (z *ZFS) SetCacheFile(ctx context.Context, name string) error {
	if _, err := z.runner.Output(ctx, "zpool", "set", "cachefile="+z.opts.CacheFile, name); err != nil {
		return fmt.Errorf("zfs: set cachefile on %s: %w", name, err)
	}
	return nil
}

// CacheFileSetup prepares the cache-file for the given role. The peer stages
// its copy next to the cache-file. MASTER discards that copy because the
// imported pools keep the local file current. BACKUP and SYNC promote it.
func (z *ZFS) CacheFileSetup(_ context.Context, mode failover.CacheFileMode) error {
	if err := os.MkdirAll(filepath.Dir(z.opts.CacheFile), 0o755); err != nil { //nolint:gosec // cache-file directory must be readable by zpool.
		return fmt.Errorf("zfs: cache-file dir: %w", err)
	}
	staged := z.opts.CacheFile + overwriteSuffix

	switch mode {
	case failover.CacheFileMaster:
		if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("zfs: remove staged cache-file: %w", err)
		}
		return nil
	case failover.CacheFileBackup, failover.CacheFileSync:
		err := os.Rename(staged, z.opts.CacheFile)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("zfs: promote staged cache-file: %w", err)
		}
		z.logger.Info("promoted staged cache-file", "mode", mode, "path", z.opts.CacheFile)
		return nil
	default:
		return fmt.Errorf("%w: unknown cache-file mode %q", failover.ErrInvalidArgument, mode)
	}
}

// UnlockDatasets loads the key of every listed dataset of pool and mounts it.
func (z *ZFS) UnlockDatasets(ctx context.Context, pool string, keys map[string]string) (failover.UnlockResult, error) {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	slices.Sort(names)

	res := failover.UnlockResult{Unlocked: make([]string, 0), Failed: make([]string, 0)}
	var errs error
	for _, name := range names {
		if err := z.unlock(ctx, name, keys[name]); err != nil {
			res.Failed = append(res.Failed, name)
			errs = multierror.Append(errs, err)
			continue
		}
		res.Unlocked = append(res.Unlocked, name)
	}
	if errs != nil {
		z.logger.Warn("failed to unlock datasets", "pool", pool, "error", errs)
	}
	return res, nil
}

func (z *ZFS) unlock(ctx context.Context, dataset, key string) error {
	f, err := os.CreateTemp(z.opts.KeyDir, "key-*")
	if err != nil {
		return fmt.Errorf("zfs: key file for %s: %w", dataset, err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.WriteString(key); err != nil {
		_ = f.Close()
		return fmt.Errorf("zfs: write key for %s: %w", dataset, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("zfs: close key file for %s: %w", dataset, err)
	}

	if _, err := z.runner.Output(ctx, "zfs", "load-key", "-L", "file://"+f.Name(), dataset); err != nil {
		return fmt.Errorf("zfs: load-key %s: %w", dataset, err)
	}
	if _, err := z.runner.Output(ctx, "zfs", "mount", dataset); err != nil {
		return fmt.Errorf("zfs: mount %s: %w", dataset, err)
	}
	return nil
}
