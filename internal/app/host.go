package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/host"
)

// HostFile describes the appliance: its controller slot, pools, interfaces
// and services.
type HostFile struct {
	Node        failover.MasterNode  `yaml:"node"`
	LicenseFile string               `yaml:"license_file"`
	Version     string               `yaml:"version"`
	HooksDir    string               `yaml:"hooks_dir"`
	ReadyFile   string               `yaml:"ready_file"`
	BootPool    string               `yaml:"boot_pool"`
	CacheFile   string               `yaml:"cache_file"`
	Database    string               `yaml:"database"`
	AltRoot     string               `yaml:"alt_root"`
	KMIP        bool                 `yaml:"kmip"`
	Pools       []host.ManagedPool   `yaml:"pools"`
	Interfaces  []failover.Interface `yaml:"interfaces"`
	Services    HostServices         `yaml:"services"`
	SyncFiles   []string             `yaml:"sync_files"`
	// ReceiveAllowList names the paths the peer may write on this node.
	ReceiveAllowList []string `yaml:"receive_allow_list"`
}

// HostServices lists the services restarted on takeover and the systemd
// unit behind each service name.
type HostServices struct {
	Critical []string          `yaml:"critical"`
	Restart  []string          `yaml:"restart"`
	Units    map[string]string `yaml:"units"`
}

// LoadHostFile reads and validates the host description at path.
func LoadHostFile(path string) (HostFile, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from configuration.
	if err != nil {
		return HostFile{}, fmt.Errorf("app: read host file: %w", err)
	}
	var hf HostFile
	if err := yaml.Unmarshal(raw, &hf); err != nil {
		return HostFile{}, fmt.Errorf("app: parse host file %s: %w", path, err)
	}
	if err := hf.Validate(); err != nil {
		return HostFile{}, err
	}
	return hf, nil
}

// Validate checks the host description for contradictions.
func (h HostFile) Validate() error {
	switch h.Node {
	case failover.NodeA, failover.NodeB, failover.NodeManual:
	default:
		return fmt.Errorf("app: host file: unsupported node %q", h.Node)
	}
	if h.LicenseFile == "" {
		return errors.New("app: host file: license_file is required")
	}

	seen := make(map[string]struct{}, len(h.Interfaces))
	for _, iface := range h.Interfaces {
		if iface.Name == "" {
			return errors.New("app: host file: interface without a name")
		}
		if _, dup := seen[iface.Name]; dup {
			return fmt.Errorf("app: host file: duplicate interface %q", iface.Name)
		}
		seen[iface.Name] = struct{}{}
		if iface.Critical && iface.Internal {
			return fmt.Errorf("app: host file: interface %q cannot be both critical and internal", iface.Name)
		}
	}
	for _, p := range h.Pools {
		if p.Name == "" || p.GUID == "" {
			return fmt.Errorf("app: host file: pool %q needs a name and a guid", p.Name)
		}
		if p.Name == h.BootPool {
			return fmt.Errorf("app: host file: boot pool %q cannot be managed", p.Name)
		}
	}
	return nil
}

// InitialVRRPStates seeds the VRRP tracker. Every critical interface starts
// as BACKUP until keepalived reports otherwise.
func (h HostFile) InitialVRRPStates() map[string]failover.VRRPState {
	out := make(map[string]failover.VRRPState)
	for _, iface := range h.Interfaces {
		if iface.Critical {
			out[iface.Name] = failover.VRRPBackup
		}
	}
	return out
}
