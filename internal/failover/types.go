// Package failover implements the failover event state machine of an
// active/standby storage controller pair.
//
// Link-state notifications arrive as (interface, event) pairs. The Service
// validates them, then runs the MASTER or BACKUP transition as a job holding
// the vrrp_master or vrrp_backup lock. The same Service computes the reasons
// failover is currently inoperative, keeps the encryption-key cache and
// replicates keys, configuration and small files to the peer controller.
package failover

import (
	"slices"
	"sort"
	"time"
)

// MasterNode names the controller configured as preferred MASTER.
type MasterNode string

// Master node slots.
const (
	NodeA      MasterNode = "A"
	NodeB      MasterNode = "B"
	NodeManual MasterNode = "MANUAL"
)

// Config is the persistent failover configuration record.
type Config struct {
	Disabled   bool       `json:"disabled"`
	MasterNode MasterNode `json:"master_node"`
	Timeout    int        `json:"timeout"`
}

// ConfigPatch is a partial update of Config. Nil fields are left unchanged.
type ConfigPatch struct {
	Disabled *bool
	Master   *bool
	Timeout  *int
}

// EventKind is the link-state transition delivered by the VRRP subsystem.
type EventKind string

// Event kinds.
const (
	EventMaster        EventKind = "MASTER"
	EventBackup        EventKind = "BACKUP"
	EventForceTakeover EventKind = "forcetakeover"
)

// Event is one link-state notification for an interface.
type Event struct {
	Interface string
	Kind      EventKind
}

// PoolStatus is the storage-engine status of a pool. Only OFFLINE is
// interpreted by this package; any other value means imported.
type PoolStatus string

// PoolOffline is reported for pools that are not imported on this node.
const PoolOffline PoolStatus = "OFFLINE"

// Pool is a storage pool managed by failover.
type Pool struct {
	Name   string     `json:"name"`
	GUID   string     `json:"guid"`
	Status PoolStatus `json:"status"`
}

// Interface describes one network interface relevant to failover.
type Interface struct {
	Name     string   `yaml:"name" json:"name"`
	Critical bool     `yaml:"critical" json:"critical"`
	Group    int      `yaml:"group" json:"group"`
	VIPs     []string `yaml:"vips" json:"vips"`
	Internal bool     `yaml:"internal" json:"internal"`
}

// VRRPState is the role VRRP assigned to an interface on one node.
type VRRPState string

// VRRP states.
const (
	VRRPMaster VRRPState = "MASTER"
	VRRPBackup VRRPState = "BACKUP"
	VRRPFault  VRRPState = "FAULT"
	VRRPStop   VRRPState = "STOP"
)

// CacheFileMode selects how the pool cache-file is prepared.
type CacheFileMode string

// Cache-file modes.
const (
	CacheFileMaster CacheFileMode = "MASTER"
	CacheFileBackup CacheFileMode = "BACKUP"
	CacheFileSync   CacheFileMode = "SYNC"
)

// EventData is the snapshot assembled when an event is validated. It is
// passed by value into the transition job and never mutated.
type EventData struct {
	Disabled    bool
	Master      bool
	Timeout     int
	Groups      map[int][]string
	Pools       []Pool
	NonCritical []string
	Internal    []string
}

// Critical returns the critical interface names across all groups, sorted.
func (d EventData) Critical() []string {
	out := make([]string, 0)
	for _, names := range d.Groups {
		out = append(out, names...)
	}
	sort.Strings(out)
	return out
}

func (d EventData) groupOf(ifname string) []string {
	for _, names := range d.Groups {
		if slices.Contains(names, ifname) {
			return names
		}
	}
	return nil
}

// Result is the terminal result of a transition.
type Result string

// Transition results.
const (
	ResultSuccess Result = "SUCCESS"
	ResultError   Result = "ERROR"
	ResultInfo    Result = "INFO"
)

// Progress labels published by transition jobs.
const (
	ProgressElecting  = "ELECTING"
	ProgressImporting = "IMPORTING"
	ProgressIgnored   = "IGNORED"
	ProgressError     = "ERROR"
	ProgressSuccess   = "SUCCESS"
	ProgressInfo      = "INFO"
)

// Status is the node-level failover status.
type Status string

// Node statuses.
const (
	StatusMaster    Status = "MASTER"
	StatusBackup    Status = "BACKUP"
	StatusElecting  Status = "ELECTING"
	StatusImporting Status = "IMPORTING"
	StatusError     Status = "ERROR"
	StatusSingle    Status = "SINGLE"
	StatusUnknown   Status = "UNKNOWN"
)

// Reason explains why failover is currently inoperative.
type Reason string

// Disabled reasons.
const (
	ReasonNoVolume             Reason = "NO_VOLUME"
	ReasonNoVIP                Reason = "NO_VIP"
	ReasonNoSystemReady        Reason = "NO_SYSTEM_READY"
	ReasonNoPong               Reason = "NO_PONG"
	ReasonNoFailover           Reason = "NO_FAILOVER"
	ReasonNoLicense            Reason = "NO_LICENSE"
	ReasonDisagreeVIP          Reason = "DISAGREE_VIP"
	ReasonMismatchDisks        Reason = "MISMATCH_DISKS"
	ReasonNoCriticalInterfaces Reason = "NO_CRITICAL_INTERFACES"
	ReasonNoFenced             Reason = "NO_FENCED"
)

// Reasons is a set of disabled reasons.
type Reasons map[Reason]struct{}

// NewReasons builds a set from the given tags.
func NewReasons(rs ...Reason) Reasons {
	out := make(Reasons, len(rs))
	for _, r := range rs {
		out[r] = struct{}{}
	}
	return out
}

// Add inserts r into the set.
func (r Reasons) Add(reason Reason) { r[reason] = struct{}{} }

// Has reports whether reason is in the set.
func (r Reasons) Has(reason Reason) bool {
	_, ok := r[reason]
	return ok
}

// Sorted returns the set as a sorted slice.
func (r Reasons) Sorted() []Reason {
	out := make([]Reason, 0, len(r))
	for reason := range r {
		out = append(out, reason)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold the same tags.
func (r Reasons) Equal(other Reasons) bool {
	if len(r) != len(other) {
		return false
	}
	for reason := range r {
		if !other.Has(reason) {
			return false
		}
	}
	return true
}

// DiskMismatch lists disks seen by only one of the two controllers.
type DiskMismatch struct {
	MissingLocal  []string
	MissingRemote []string
}

// Empty reports whether both controllers see the same disks.
func (m DiskMismatch) Empty() bool {
	return len(m.MissingLocal) == 0 && len(m.MissingRemote) == 0
}

// UnlockResult lists datasets that were and were not unlocked.
type UnlockResult struct {
	Unlocked []string
	Failed   []string
}

// ImportOptions controls a single pool import attempt.
type ImportOptions struct {
	UseCacheFile bool
	MissingLog   bool
	AltRoot      string
}

// FileChunk is one piece of a small file pushed to the peer.
type FileChunk struct {
	Path   string
	Data   []byte
	Mode   uint32
	Append bool
}

// TransitionRecord is the last terminal transition outcome.
type TransitionRecord struct {
	JobID    string
	Event    Event
	Result   Result
	Error    string
	Finished time.Time
}

// ControlAction enables or disables failover.
type ControlAction string

// Control actions.
const (
	ControlEnable  ControlAction = "ENABLE"
	ControlDisable ControlAction = "DISABLE"
)
