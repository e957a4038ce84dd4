package failover

import (
	"context"
	"time"
)

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ConfigStore persists the failover configuration record.
type ConfigStore interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// FlagStore persists boolean key/value flags such as HA_UPGRADE.
type FlagStore interface {
	Flag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string, value bool) error
}

// Storage is the storage engine's pool interface.
type Storage interface {
	// Pools returns the managed (non-boot) pools and their current status.
	Pools(ctx context.Context) ([]Pool, error)
	// ImportedPools returns the names of non-boot pools imported on this node.
	ImportedPools(ctx context.Context) ([]string, error)
	// Import imports a pool by guid. It returns an error wrapping
	// ErrPoolNotFound when the pool cannot be located through the
	// requested import path.
	Import(ctx context.Context, guid string, opts ImportOptions) error
	Export(ctx context.Context, name string, force bool) error
	// SetCacheFile points the pool's cachefile property at the managed cache-file.
	SetCacheFile(ctx context.Context, name string) error
	CacheFileSetup(ctx context.Context, mode CacheFileMode) error
	// UnlockDatasets unlocks encrypted datasets of pool with the given keys.
	UnlockDatasets(ctx context.Context, pool string, keys map[string]string) (UnlockResult, error)
}

// ServiceManager controls OS services.
type ServiceManager interface {
	Start(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Enabled(ctx context.Context, name string) (bool, error)
}

// Firewall toggles whether this node accepts network traffic.
type Firewall interface {
	AcceptAll(ctx context.Context) error
	DropAll(ctx context.Context) error
}

// Interfaces exposes the network interface inventory and local VRRP roles.
type Interfaces interface {
	List(ctx context.Context) ([]Interface, error)
	VRRPStates(ctx context.Context) (map[string]VRRPState, error)
}

// Host steps run through System.Run.
const (
	StepEtcRC         = "etc.rc"
	StepEtcSSL        = "etc.ssl"
	StepEtcCron       = "etc.cron"
	StepSystemDataset = "systemdataset.setup"
	StepDiskSync      = "disk.sync_all"
	StepSEDUnlock     = "disk.sed_unlock"
	StepEnclosureSync = "enclosure.sync"
	StepWorkloads     = "workloads.start"
	StepAlertsInit    = "alerts.initialize"
)

// System runs host configuration steps and reports host readiness.
type System interface {
	Run(ctx context.Context, step string) error
	Ready(ctx context.Context) (bool, error)
	Version() string
	// Reboot schedules an orderly reboot after delay.
	Reboot(ctx context.Context, delay time.Duration) error
}

// Disks reports disk identities (serials) visible to this node.
type Disks interface {
	Identities(ctx context.Context) ([]string, error)
	BootIdentities(ctx context.Context) ([]string, error)
}

// Rebooter performs the kernel emergency reboot. It does not return on a
// real host.
type Rebooter interface {
	EmergencyReboot() error
}

// Sentinel marks an imminent, intentional unclean shutdown.
type Sentinel interface {
	Mark() error
	Clear() error
}

// Alerts raises and clears one-shot alerts.
type Alerts interface {
	OneshotCreate(ctx context.Context, kind string, args map[string]string) error
	OneshotDelete(ctx context.Context, kind string) error
}

// KMIP is the KMIP-managed key source.
type KMIP interface {
	Enabled(ctx context.Context) (bool, error)
	Keys(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, keys map[string]string) error
	Initialize(ctx context.Context) error
}

// Identity describes this controller.
type Identity interface {
	NodeSlot() MasterNode
	Licensed(ctx context.Context) (bool, error)
}

// Notifier publishes events on the notification bus.
type Notifier interface {
	Send(topic, action string, fields map[string]any)
}

// Metrics captures failover metric sinks.
type Metrics interface {
	IncFailoverEvent(nodeID, kind, outcome string)
	ObserveFailoverTransition(nodeID, kind, result string, d time.Duration)
	IncFailoverPoolImport(nodeID, result string)
	IncFailoverFencedStart(nodeID string, code int)
	ObserveFailoverExport(nodeID string, d time.Duration, timedOut bool)
	IncFailoverEmergencyReboot(nodeID string)
	IncFailoverKeySync(nodeID, target, result string)
	SetFailoverDisabledReason(nodeID, reason string, active bool)
}

type noopMetrics struct{}

func (noopMetrics) IncFailoverEvent(string, string, string)                         {}
func (noopMetrics) ObserveFailoverTransition(string, string, string, time.Duration) {}
func (noopMetrics) IncFailoverPoolImport(string, string)                            {}
func (noopMetrics) IncFailoverFencedStart(string, int)                              {}
func (noopMetrics) ObserveFailoverExport(string, time.Duration, bool)               {}
func (noopMetrics) IncFailoverEmergencyReboot(string)                               {}
func (noopMetrics) IncFailoverKeySync(string, string, string)                       {}
func (noopMetrics) SetFailoverDisabledReason(string, string, bool)                  {}
