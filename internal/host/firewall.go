package host

import (
	"context"
	"fmt"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

const nftTable = "ha_failover"

// NFTables drops inbound traffic on the standby through a dedicated table.
// Loopback and the heartbeat interfaces stay open.
type NFTables struct {
	allow  []string
	runner sysexec.Runner
}

var _ failover.Firewall = (*NFTables)(nil)

// NewNFTables returns a firewall that keeps the allow interfaces open.
func NewNFTables(allow []string, runner sysexec.Runner) *NFTables {
	return &NFTables{allow: allow, runner: runner}
}

// AcceptAll removes the drop table.
func (f *NFTables) AcceptAll(ctx context.Context) error {
	if _, err := f.runner.Output(ctx, "nft", "destroy", "table", "inet", nftTable); err != nil {
		return fmt.Errorf("firewall: accept all: %w", err)
	}
	return nil
}

// DropAll installs a drop-by-default input chain.
func (f *NFTables) DropAll(ctx context.Context) error {
	cmds := [][]string{
		{"destroy", "table", "inet", nftTable},
		{"add", "table", "inet", nftTable},
		{"add", "chain", "inet", nftTable, "input", "{ type filter hook input priority 0 ; policy drop ; }"},
		{"add", "rule", "inet", nftTable, "input", "iifname", "lo", "accept"},
	}
	for _, ifname := range f.allow {
		cmds = append(cmds, []string{"add", "rule", "inet", nftTable, "input", "iifname", ifname, "accept"})
	}
	for _, args := range cmds {
		if _, err := f.runner.Output(ctx, "nft", args...); err != nil {
			return fmt.Errorf("firewall: drop all: %w", err)
		}
	}
	return nil
}
