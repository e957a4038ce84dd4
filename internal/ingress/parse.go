// Package ingress turns keepalived notify lines into failover events.
package ingress

import (
	"fmt"
	"strings"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Notification is one parsed VRRP state change. Kind is set only for
// MASTER and BACKUP; State always carries the reported state.
type Notification struct {
	Interface string
	State     failover.VRRPState
	Kind      failover.EventKind
}

// ParseNotifyLine parses a keepalived notify line such as
//
//	INSTANCE "eth0_v4" MASTER 100
//
// The instance name is the interface followed by an address family suffix
// after the last underscore. The second result is false for states other
// than MASTER and BACKUP.
func ParseNotifyLine(line string) (Notification, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Notification{}, false, fmt.Errorf("ingress: malformed notify line %q", line)
	}

	ifname := strings.Trim(fields[1], `"`)
	if i := strings.LastIndex(ifname, "_"); i >= 0 {
		ifname = ifname[:i]
	}
	if ifname == "" {
		return Notification{}, false, fmt.Errorf("ingress: no interface in notify line %q", line)
	}

	n := Notification{Interface: ifname, State: failover.VRRPState(fields[2])}
	switch kind := failover.EventKind(fields[2]); kind {
	case failover.EventMaster, failover.EventBackup:
		n.Kind = kind
		return n, true, nil
	default:
		return n, false, nil
	}
}
