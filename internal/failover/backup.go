package failover

import (
	"context"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

// becomeBackup runs the BACKUP transition: release the disks, stop serving,
// export pools within the deadline, then reconfigure the node as standby.
func (s *Service) becomeBackup(ctx context.Context, j *job.Job, data EventData, ifname string) (Result, error) {
	masters, _, err := s.groupStates(ctx, data, ifname)
	if err != nil {
		s.logger.Error("failed to check failover group", "ifname", ifname, "error", err)
		return ResultError, err
	}
	if len(masters) > 0 {
		s.logger.Warn("received BACKUP event but other interfaces in the failover group are still MASTER, ignoring",
			"ifname", ifname, "master_interfaces", masters)
		return "", ErrIgnoreEvent
	}

	s.logger.Warn("entering BACKUP", "ifname", ifname)

	s.logger.Warn("stopping fenced")
	s.stopFencing(ctx)

	s.logger.Info("blocking network traffic")
	if err := s.firewall.DropAll(ctx); err != nil {
		s.logger.Error("error blocking network traffic", "error", err)
	}

	s.logger.Info("transitioning all VIPs off this node")
	if err := s.services.Restart(ctx, s.opts.VIPService); err != nil {
		s.logger.Error("failed to restart service", "service", s.opts.VIPService, "error", err)
	}

	if err := s.sentinel.Mark(); err != nil {
		s.logger.Warn("failed to write watchdog sentinel", "error", err)
	}

	if err := s.storage.CacheFileSetup(ctx, CacheFileBackup); err != nil {
		s.logger.Error("failed to set up pool cache-file", "mode", CacheFileBackup, "error", err)
	}

	s.exportPools(ctx, data.Pools)

	if err := s.sentinel.Clear(); err != nil {
		s.logger.Warn("failed to remove watchdog sentinel", "error", err)
	}

	s.logger.Info("refreshing failover status")
	s.state.dropStatus()

	s.logger.Info("setting up system dataset")
	s.runStep(ctx, StepSystemDataset)

	s.logger.Info("restarting syslog")
	if err := s.services.Restart(ctx, s.opts.SyslogService); err != nil {
		s.logger.Error("failed to restart service", "service", s.opts.SyslogService, "error", err)
	}

	s.logger.Info("regenerating cron")
	s.runStep(ctx, StepEtcCron)

	for _, name := range s.opts.BackupStopServices {
		s.logger.Info("stopping service", "service", name)
		if err := s.services.Stop(ctx, name); err != nil {
			s.logger.Error("failed to stop service", "service", name, "error", err)
		}
	}

	if enabled, err := s.services.Enabled(ctx, s.opts.SSHService); err != nil {
		s.logger.Warn("failed to read service state", "service", s.opts.SSHService, "error", err)
	} else if enabled {
		s.logger.Info("restarting SSH")
		if err := s.services.Restart(ctx, s.opts.SSHService); err != nil {
			s.logger.Error("failed to restart service", "service", s.opts.SSHService, "error", err)
		}
	}

	s.logger.Info("syncing encryption keys from MASTER node")
	pctx, cancel := s.peerContext(ctx)
	err = s.peer.SyncKeysToRemote(pctx)
	cancel()
	if err != nil {
		s.logger.Error("failed to request encryption keys from MASTER node", "error", err)
	}

	s.logger.Info("successfully became the BACKUP node", "ifname", ifname)
	j.SetProgress(ProgressSuccess)
	return ResultSuccess, nil
}
