package host

import (
	"context"
	"slices"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// VRRPSource reports the VRRP role of local interfaces.
type VRRPSource interface {
	VRRPStates(ctx context.Context) (map[string]failover.VRRPState, error)
}

// Interfaces serves the static interface inventory from the host file and
// live VRRP roles from source.
type Interfaces struct {
	list   []failover.Interface
	source VRRPSource
}

var _ failover.Interfaces = (*Interfaces)(nil)

// NewInterfaces returns an inventory over list.
func NewInterfaces(list []failover.Interface, source VRRPSource) *Interfaces {
	return &Interfaces{list: slices.Clone(list), source: source}
}

func (i *Interfaces) List(context.Context) ([]failover.Interface, error) {
	return slices.Clone(i.list), nil
}

func (i *Interfaces) VRRPStates(ctx context.Context) (map[string]failover.VRRPState, error) {
	return i.source.VRRPStates(ctx)
}

// Internal returns the names of the heartbeat interfaces.
func (i *Interfaces) Internal() []string {
	out := make([]string, 0)
	for _, iface := range i.list {
		if iface.Internal {
			out = append(out, iface.Name)
		}
	}
	return out
}
