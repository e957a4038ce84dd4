package failover

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
)

func writeTemp(t *testing.T, name, content string, mode fs.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
	return path
}

func TestService_SendSmallFile_PreservesModeAndDestination(t *testing.T) {
	h := newHarness(t)
	src := writeTemp(t, "hosts", "127.0.0.1 localhost\n", 0o640)

	h.peer.EXPECT().ReceiveFile(gomock.Any(), FileChunk{
		Path: "/etc/hosts.new",
		Data: []byte("127.0.0.1 localhost\n"),
		Mode: 0o640,
	}).Return(nil).Times(1)

	if err := h.svc.SendSmallFile(context.Background(), src, "/etc/hosts.new"); err != nil {
		t.Fatalf("SendSmallFile: %v", err)
	}
}

func TestService_SendSmallFile_EmptyFileSendsOneChunk(t *testing.T) {
	h := newHarness(t)
	src := writeTemp(t, "empty", "", 0o600)
	h.peer.EXPECT().ReceiveFile(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c FileChunk) error {
		if len(c.Data) != 0 || c.Append {
			t.Errorf("expected one empty truncating chunk, got %+v", c)
		}
		return nil
	}).Times(1)

	if err := h.svc.SendSmallFile(context.Background(), src, ""); err != nil {
		t.Fatalf("SendSmallFile: %v", err)
	}
}

func TestService_SendSmallFile_SkipsMissingFile(t *testing.T) {
	h := newHarness(t)

	if err := h.svc.SendSmallFile(context.Background(), filepath.Join(t.TempDir(), "missing"), ""); err != nil {
		t.Fatalf("expected missing file to be skipped, got %v", err)
	}
}

func TestService_ReceiveFile_AllowList(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "etc", "hosts")
	h := newHarness(t, func(o *Options) { o.ReceiveAllowList = []string{allowed} })

	ctx := context.Background()
	if err := h.svc.ReceiveFile(ctx, FileChunk{Path: allowed, Data: []byte("one\n"), Mode: 0o644}); err != nil {
		t.Fatalf("ReceiveFile: %v", err)
	}
	if err := h.svc.ReceiveFile(ctx, FileChunk{Path: allowed, Data: []byte("two\n"), Mode: 0o644, Append: true}); err != nil {
		t.Fatalf("ReceiveFile append: %v", err)
	}
	data, err := os.ReadFile(allowed)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("expected appended content, got %q", data)
	}
	info, err := os.Stat(allowed)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}

	other := filepath.Join(dir, "etc", "shadow")
	if err := h.svc.ReceiveFile(ctx, FileChunk{Path: other, Data: []byte("x")}); !errors.Is(err, ErrPathNotAllowed) {
		t.Fatalf("expected ErrPathNotAllowed, got %v", err)
	}
	if _, err := os.Stat(other); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected %s not to be written, got %v", other, err)
	}
}

func TestService_SyncToPeer(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "config.db")
	cache := filepath.Join(dir, "zpool.cache")
	extra := filepath.Join(dir, "pwenc_secret")
	for path, content := range map[string]string{db: "DB", cache: "CACHE", extra: "SECRET"} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	h := newHarness(t, func(o *Options) {
		o.DatabasePath = db
		o.CacheFilePath = cache
		o.SyncFiles = []string{extra}
	})
	remote := newHarness(t, func(o *Options) {
		o.DatabasePath = db
		o.CacheFilePath = cache
		o.ReceiveAllowList = []string{extra}
	})
	h.storage.imported = []string{"tank"}

	received := make([]string, 0)
	gomock.InOrder(
		h.peer.EXPECT().ReceiveFile(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, c FileChunk) error {
			received = append(received, c.Path)
			return remote.svc.ReceiveFile(ctx, c)
		}),
		h.peer.EXPECT().ActivateDatabase(gomock.Any()).DoAndReturn(remote.svc.ActivateDatabase),
		h.peer.EXPECT().Ping(gomock.Any()).Return(nil),
		h.peer.EXPECT().PutEncryptionKeys(gomock.Any(), gomock.Any()).Return(nil),
		h.peer.EXPECT().ReceiveFile(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, c FileChunk) error {
			received = append(received, c.Path)
			return remote.svc.ReceiveFile(ctx, c)
		}).Times(2),
		h.peer.EXPECT().CacheFileSetup(gomock.Any(), CacheFileSync).Return(nil),
		h.peer.EXPECT().Reboot(gomock.Any(), peerRebootDelay).Return(nil),
	)

	if err := h.svc.SyncToPeer(context.Background(), true); err != nil {
		t.Fatalf("SyncToPeer: %v", err)
	}

	want := []string{db + databaseSyncSuffix, extra, cache + cacheFileSyncSuffix}
	if len(received) != len(want) {
		t.Fatalf("expected %v, got %v", want, received)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, received)
		}
	}
	if _, err := os.Stat(db + databaseSyncSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged database to be activated, got %v", err)
	}
	staged, err := os.ReadFile(cache + cacheFileSyncSuffix)
	if err != nil || string(staged) != "CACHE" {
		t.Fatalf("expected staged cache-file, got %q (err %v)", staged, err)
	}
}

func TestService_ActivateDatabase_RequiresDatabasePath(t *testing.T) {
	h := newHarness(t)

	if err := h.svc.ActivateDatabase(context.Background()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
