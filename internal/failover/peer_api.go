package failover

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// The methods below answer calls made by the peer controller.

// SystemReady reports whether the host finished booting.
func (s *Service) SystemReady(ctx context.Context) (bool, error) {
	return s.system.Ready(ctx)
}

// ImportedPools returns the non-boot pools imported on this node.
func (s *Service) ImportedPools(ctx context.Context) ([]string, error) {
	return s.storage.ImportedPools(ctx)
}

// VRRPStates returns this node's VRRP role per interface.
func (s *Service) VRRPStates(ctx context.Context) (map[string]VRRPState, error) {
	return s.interfaces.VRRPStates(ctx)
}

// LocalDisks returns this node's non-boot disk identities.
func (s *Service) LocalDisks(ctx context.Context) ([]string, error) {
	if s.disks == nil {
		return []string{}, nil
	}
	all, err := s.disks.Identities(ctx)
	if err != nil {
		return nil, err
	}
	boot, err := s.disks.BootIdentities(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Without(all, boot...), nil
}

// Version returns the installed software version.
func (s *Service) Version() string {
	return s.system.Version()
}

// PutKMIPKeys installs KMIP-managed keys pushed by the peer.
func (s *Service) PutKMIPKeys(ctx context.Context, keys map[string]string) error {
	if s.kmip == nil {
		return nil
	}
	return s.kmip.Update(ctx, keys)
}

// CacheFileSetup prepares the local pool cache-file.
func (s *Service) CacheFileSetup(ctx context.Context, mode CacheFileMode) error {
	return s.storage.CacheFileSetup(ctx, mode)
}

// ServiceControl runs start, stop or restart on a local service.
func (s *Service) ServiceControl(ctx context.Context, verb, service string) error {
	switch verb {
	case "start":
		return s.services.Start(ctx, service)
	case "stop":
		return s.services.Stop(ctx, service)
	case "restart":
		return s.services.Restart(ctx, service)
	default:
		return fmt.Errorf("%w: unknown service verb %q", ErrInvalidArgument, verb)
	}
}

// Reboot schedules an orderly reboot of this node.
func (s *Service) Reboot(ctx context.Context, delay time.Duration) error {
	s.logger.Warn("reboot requested by peer", "delay", delay)
	return s.system.Reboot(ctx, delay)
}
