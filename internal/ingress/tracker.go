package ingress

import (
	"context"
	"maps"
	"sync"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Tracker remembers the last VRRP role reported for each interface.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]failover.VRRPState
}

// NewTracker returns a tracker seeded with initial roles.
func NewTracker(initial map[string]failover.VRRPState) *Tracker {
	states := maps.Clone(initial)
	if states == nil {
		states = make(map[string]failover.VRRPState)
	}
	return &Tracker{states: states}
}

// Set records the role of ifname.
func (t *Tracker) Set(ifname string, state failover.VRRPState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[ifname] = state
}

// VRRPStates returns a copy of the known roles.
func (t *Tracker) VRRPStates(context.Context) (map[string]failover.VRRPState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.states), nil
}
