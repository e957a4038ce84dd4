package failover

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/avast/retry-go"
)

// FlagUpgrade marks an HA upgrade that has not finished on both nodes.
const FlagUpgrade = "HA_UPGRADE"

// Peer wait tuning used when the system becomes ready.
var (
	peerWaitAttempts uint = 12
	peerWaitDelay         = 5 * time.Second
)

// UpgradePending reports whether the peer still runs an older version than
// this MASTER node after an HA upgrade.
func (s *Service) UpgradePending(ctx context.Context) (bool, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	if st != StatusMaster {
		return false, ErrNotMaster
	}

	pending, err := s.flags.Flag(ctx, FlagUpgrade)
	if err != nil {
		return false, fmt.Errorf("failover: read %s: %w", FlagUpgrade, err)
	}
	if !pending {
		return false, nil
	}

	pctx, cancel := s.peerContext(ctx)
	defer cancel()
	if err := s.peer.Ping(pctx); err != nil {
		return false, nil
	}

	localRaw := s.system.Version()
	remoteRaw, err := s.peer.Version(pctx)
	if err != nil {
		return false, fmt.Errorf("failover: read peer version: %w", err)
	}
	if localRaw == remoteRaw {
		if err := s.flags.SetFlag(ctx, FlagUpgrade, false); err != nil {
			return false, fmt.Errorf("failover: clear %s: %w", FlagUpgrade, err)
		}
		return false, nil
	}

	local, err := semver.NewVersion(localRaw)
	if err != nil {
		return false, fmt.Errorf("failover: unable to determine installed version %q: %w", localRaw, err)
	}
	remote, err := semver.NewVersion(remoteRaw)
	if err != nil {
		return false, fmt.Errorf("failover: unable to determine peer version %q: %w", remoteRaw, err)
	}
	return local.GreaterThan(remote), nil
}

// OnSystemReady runs once the host finished booting. A standby node with a
// pending upgrade announces it, then pulls encryption keys from the MASTER.
func (s *Service) OnSystemReady(ctx context.Context) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if st == StatusMaster || st == StatusSingle {
		return nil
	}

	pending, err := s.flags.Flag(ctx, FlagUpgrade)
	if err != nil {
		return fmt.Errorf("failover: read %s: %w", FlagUpgrade, err)
	}
	if pending {
		s.notifier.Send("failover.upgrade_pending", "ADDED", map[string]any{"id": string(StatusBackup), "pending": true})
	}

	if err := s.waitForPeer(ctx); err != nil {
		s.logger.Warn("peer did not answer after system ready", "error", err)
		return nil
	}
	return s.SyncKeysFromRemote(ctx)
}

// waitForPeer retries a ping until the peer answers or attempts run out.
func (s *Service) waitForPeer(ctx context.Context) error {
	return retry.Do(
		func() error {
			pctx, cancel := s.peerContext(ctx)
			defer cancel()
			return s.peer.Ping(pctx)
		},
		retry.Context(ctx),
		retry.Attempts(peerWaitAttempts),
		retry.Delay(peerWaitDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// OnShutdown stops fencing so the peer can reserve the disks.
func (s *Service) OnShutdown(ctx context.Context) {
	s.logger.Info("stopping fenced on shutdown")
	s.stopFencing(ctx)
}

// OnLicenseUpdate drops cached HA state. When the node is licensed the
// license file is pushed to the peer and status is refreshed.
func (s *Service) OnLicenseUpdate(ctx context.Context, licenseFile string) error {
	s.state.Reset()

	licensed, err := s.Licensed(ctx)
	if err != nil {
		return err
	}
	if !licensed {
		return nil
	}

	if licenseFile != "" {
		pctx, cancel := s.peerContext(ctx)
		err := s.SendSmallFile(pctx, licenseFile, "")
		cancel()
		if err != nil {
			s.logger.Warn("failed to sync license to standby controller", "error", err)
		}
	}

	_, err = s.RefreshStatus(ctx)
	return err
}

// SetupHA pairs a freshly configured node with its peer. It only acts when
// the node is licensed, has virtual addresses and pools, and the peer still
// reports SINGLE. The first result reports whether setup ran.
func (s *Service) SetupHA(ctx context.Context) (bool, error) {
	ctx, span := s.startSpan(ctx, "failover.SetupHA")
	defer span.End()

	licensed, err := s.Licensed(ctx)
	if err != nil || !licensed {
		return false, err
	}
	ifaces, err := s.interfaces.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failover: list interfaces: %w", err)
	}
	if !slices.ContainsFunc(ifaces, func(i Interface) bool { return len(i.VIPs) > 0 }) {
		return false, nil
	}
	pools, err := s.storage.Pools(ctx)
	if err != nil {
		return false, fmt.Errorf("failover: query pools: %w", err)
	}
	if len(pools) == 0 {
		return false, nil
	}

	if _, err := s.RefreshStatus(ctx); err != nil {
		spanRecordError(span, err)
		return false, err
	}

	pctx, cancel := s.peerContext(ctx)
	remote, err := s.peer.Status(pctx)
	cancel()
	if err != nil {
		s.logger.Warn("failed to read peer status, assuming HA is configured", "error", err)
		return false, nil
	}
	if remote != StatusSingle {
		return false, nil
	}

	s.logger.Info("setting up HA")
	s.logger.Debug("synchronizing database and files")
	if err := s.SyncToPeer(ctx, false); err != nil {
		spanRecordError(span, err)
		return false, err
	}

	if enabled, err := s.services.Enabled(ctx, s.opts.SSHService); err != nil {
		s.logger.Warn("failed to read service state", "service", s.opts.SSHService, "error", err)
	} else if enabled {
		s.logger.Debug("restarting SSH on standby controller")
		pctx, cancel := s.peerContext(ctx)
		err := s.peer.ServiceControl(pctx, "restart", s.opts.SSHService)
		cancel()
		if err != nil {
			s.logger.Warn("failed to restart SSH on standby controller", "error", err)
		}
	}

	s.logger.Info("HA setup complete")
	s.notifier.Send("failover.setup", "ADDED", map[string]any{})
	return true, nil
}

// OnPoolExport drops the exported pool's keys.
func (s *Service) OnPoolExport(ctx context.Context, pool string) error {
	return s.RemoveEncryptionKeys(ctx, []string{pool}, true)
}
