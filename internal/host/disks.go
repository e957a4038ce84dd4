package host

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

type blockDevice struct {
	Name   string `json:"name"`
	Serial string `json:"serial"`
	Type   string `json:"type"`
	PKName string `json:"pkname"`
}

type lsblkOutput struct {
	BlockDevices []blockDevice `json:"blockdevices"`
}

// Disks reads disk serials with lsblk and the boot pool layout with zpool.
type Disks struct {
	bootPool string
	runner   sysexec.Runner
}

var _ failover.Disks = (*Disks)(nil)

// NewDisks returns a disk inventory.
func NewDisks(bootPool string, runner sysexec.Runner) *Disks {
	return &Disks{bootPool: bootPool, runner: runner}
}

// Identities returns the serials of every whole disk.
func (d *Disks) Identities(ctx context.Context) ([]string, error) {
	devs, err := d.devices(ctx)
	if err != nil {
		return nil, err
	}
	serials := lo.FilterMap(devs, func(dev blockDevice, _ int) (string, bool) {
		return dev.Serial, dev.Type == "disk" && dev.Serial != ""
	})
	serials = lo.Uniq(serials)
	slices.Sort(serials)
	return serials, nil
}

// BootIdentities returns the serials of the disks backing the boot pool.
func (d *Disks) BootIdentities(ctx context.Context) ([]string, error) {
	if d.bootPool == "" {
		return []string{}, nil
	}
	out, err := d.runner.Output(ctx, "zpool", "list", "-H", "-v", "-P", "-L", d.bootPool)
	if err != nil {
		return nil, fmt.Errorf("host: boot pool layout: %w", err)
	}
	devs, err := d.devices(ctx)
	if err != nil {
		return nil, err
	}
	byName := lo.KeyBy(devs, func(dev blockDevice) string { return dev.Name })

	serials := make([]string, 0)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		dev, ok := byName[fields[0]]
		if !ok {
			continue
		}
		if dev.Type != "disk" && dev.PKName != "" {
			dev = byName[dev.PKName]
		}
		if dev.Serial != "" {
			serials = append(serials, dev.Serial)
		}
	}
	serials = lo.Uniq(serials)
	slices.Sort(serials)
	return serials, nil
}

func (d *Disks) devices(ctx context.Context) ([]blockDevice, error) {
	out, err := d.runner.Output(ctx, "lsblk", "-J", "-l", "-p", "-o", "NAME,SERIAL,TYPE,PKNAME")
	if err != nil {
		return nil, fmt.Errorf("host: lsblk: %w", err)
	}
	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("host: decode lsblk: %w", err)
	}
	return parsed.BlockDevices, nil
}
