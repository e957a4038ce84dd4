//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

package failover

import (
	"context"
	"time"
)

// Fencer starts and stops the disk reservation helper.
type Fencer interface {
	// Start launches fencing and returns the helper's exit code.
	Start(ctx context.Context, force bool) (int, error)
	Stop(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
}

// Peer is the typed RPC client for the other controller.
type Peer interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	SystemReady(ctx context.Context) (bool, error)
	ImportedPools(ctx context.Context) ([]string, error)
	Licensed(ctx context.Context) (bool, error)
	VRRPStates(ctx context.Context) (map[string]VRRPState, error)
	// Disks returns the peer's non-boot disk identities.
	Disks(ctx context.Context) ([]string, error)
	Version(ctx context.Context) (string, error)
	PutEncryptionKeys(ctx context.Context, keys map[string]string) error
	PutKMIPKeys(ctx context.Context, keys map[string]string) error
	ReceiveFile(ctx context.Context, chunk FileChunk) error
	ActivateDatabase(ctx context.Context) error
	CacheFileSetup(ctx context.Context, mode CacheFileMode) error
	ServiceControl(ctx context.Context, verb, service string) error
	// SyncKeysToRemote asks the peer to push its keys to this node.
	SyncKeysToRemote(ctx context.Context) error
	// SyncToPeer asks the peer to push its database and files to this node.
	SyncToPeer(ctx context.Context, reboot bool) error
	ForceMaster(ctx context.Context) error
	Reboot(ctx context.Context, delay time.Duration) error
}
