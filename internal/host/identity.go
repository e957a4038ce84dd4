package host

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Identity reports the controller slot and whether an HA license is installed.
type Identity struct {
	slot        failover.MasterNode
	licenseFile string
}

var _ failover.Identity = (*Identity)(nil)

// NewIdentity returns the identity of the controller in slot.
func NewIdentity(slot failover.MasterNode, licenseFile string) *Identity {
	return &Identity{slot: slot, licenseFile: licenseFile}
}

func (i *Identity) NodeSlot() failover.MasterNode { return i.slot }

// Licensed reports whether a non-empty license file is present.
func (i *Identity) Licensed(context.Context) (bool, error) {
	info, err := os.Stat(i.licenseFile)
	switch {
	case err == nil:
		return info.Size() > 0, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("host: license: %w", err)
	}
}
