package failover

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

// becomeMaster runs the MASTER transition: fencing, pool import, then the
// critical service path. Lower-priority steps are detached once the critical
// path is complete.
func (s *Service) becomeMaster(ctx context.Context, j *job.Job, data EventData, ifname string, kind EventKind) (Result, error) {
	j.SetProgress(ProgressElecting)

	var (
		code int
		err  error
	)
	if kind == EventForceTakeover {
		s.logger.Warn("forcefully taking over as the MASTER node", "ifname", ifname)
		s.stopFencing(ctx)

		s.logger.Warn("forcefully starting fenced")
		code, err = s.fencer.Start(ctx, true)
	} else {
		_, backups, gerr := s.groupStates(ctx, data, ifname)
		if gerr != nil {
			s.logger.Error("failed to check failover group", "ifname", ifname, "error", gerr)
			return ResultError, fmt.Errorf("failover: check failover group: %w", gerr)
		}
		if len(backups) > 0 {
			s.logger.Warn("received MASTER event but other interfaces in the failover group are still BACKUP, ignoring",
				"ifname", ifname, "backup_interfaces", backups)
			return "", ErrIgnoreEvent
		}

		s.logger.Warn("entering MASTER", "ifname", ifname)
		s.stopFencing(ctx)

		s.logger.Warn("starting fenced")
		code, err = s.fencer.Start(ctx, false)
	}
	if err != nil {
		s.logger.Error("failed to start fenced", "error", err)
		return ResultError, fmt.Errorf("failover: start fenced: %w", err)
	}
	s.metrics.IncFailoverFencedStart(s.nodeID, code)
	if code != FencedOK {
		ferr := &FencedError{Code: code}
		s.logger.Error("fenced failed to start, aborting failover", "code", code, "error", ferr)
		return ResultError, ferr
	}

	if len(data.Pools) == 0 {
		s.logger.Warn("no pools to import, exiting failover event")
		j.SetProgress(ProgressInfo)
		return ResultInfo, nil
	}

	if err := s.system.Run(ctx, StepSEDUnlock); err != nil {
		s.logger.Error("failed to unlock self-encrypting disks", "error", err)
	}

	if err := s.storage.CacheFileSetup(ctx, CacheFileMaster); err != nil {
		s.logger.Error("failed to set up pool cache-file", "mode", CacheFileMaster, "error", err)
		return ResultError, fmt.Errorf("failover: cache-file setup: %w", err)
	}

	j.SetProgress(ProgressImporting)
	if err := s.importPools(ctx, data.Pools); err != nil {
		return ResultError, err
	}
	s.logger.Info("pool imports complete")

	s.criticalMasterSteps(ctx)
	s.logger.Info("critical portion of failover is now complete")

	bgCtx := context.WithoutCancel(ctx)
	s.goBackground(func() { s.backgroundMasterSteps(bgCtx) })

	s.logger.Info("failover event complete", "ifname", ifname)
	j.SetProgress(ProgressSuccess)
	return ResultSuccess, nil
}

// importPools imports every pool and tolerates partial failure. It returns an
// error wrapping ErrAllPoolsFailedToImport only when no pool was imported.
func (s *Service) importPools(ctx context.Context, pools []Pool) error {
	var merr *multierror.Error
	failed := 0
	for _, p := range pools {
		s.logger.Info("importing pool", "pool", p.Name, "guid", p.GUID)
		if err := s.importPool(ctx, p); err != nil {
			failed++
			s.metrics.IncFailoverPoolImport(s.nodeID, "error")
			merr = multierror.Append(merr, fmt.Errorf("pool %q (guid %s): %w", p.Name, p.GUID, err))
			s.logger.Error("failed to import pool", "pool", p.Name, "guid", p.GUID, "error", err)
			continue
		}
		s.metrics.IncFailoverPoolImport(s.nodeID, "ok")
		s.logger.Info("successfully imported pool", "pool", p.Name)
		s.unlockPool(ctx, p.Name)
	}

	switch {
	case failed == len(pools):
		s.logger.Error("all pools failed to import")
		return fmt.Errorf("%w: %w", ErrAllPoolsFailedToImport, merr.ErrorOrNil())
	case failed > 0:
		s.logger.Error("some pools failed to import, failover continues", "failed", failed, "total", len(pools))
	}
	return nil
}

// importPool imports by guid through the cache-file, retrying without it when
// the cache-file does not know the pool.
func (s *Service) importPool(ctx context.Context, p Pool) error {
	opts := ImportOptions{UseCacheFile: true, MissingLog: true, AltRoot: s.opts.AltRoot}
	err := s.storage.Import(ctx, p.GUID, opts)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrPoolNotFound) {
		return err
	}

	s.logger.Warn("failed importing pool using cache-file, trying without it", "pool", p.Name, "error", err)
	opts.UseCacheFile = false
	if err := s.storage.Import(ctx, p.GUID, opts); err != nil {
		return err
	}
	if err := s.storage.SetCacheFile(ctx, p.Name); err != nil {
		s.logger.Warn("failed to set cachefile property", "pool", p.Name, "error", err)
	}
	return nil
}

// unlockPool unlocks the encrypted datasets of a freshly imported pool.
// Failures are logged; the pool still counts as imported.
func (s *Service) unlockPool(ctx context.Context, pool string) {
	keys := s.keys.ForPool(pool)
	if len(keys) == 0 {
		return
	}
	res, err := s.storage.UnlockDatasets(ctx, pool, keys)
	if err != nil {
		s.logger.Error("error unlocking encrypted datasets", "pool", pool, "error", err)
		return
	}
	if len(res.Failed) > 0 {
		s.logger.Error("failed to unlock encrypted datasets", "pool", pool, "datasets", res.Failed)
	}
}

func (s *Service) criticalMasterSteps(ctx context.Context) {
	s.logger.Info("refreshing failover status")
	s.state.dropStatus()

	s.logger.Info("enabling necessary services")
	s.runStep(ctx, StepEtcRC)

	s.logger.Info("configuring system dataset")
	s.runStep(ctx, StepSystemDataset)

	s.logger.Info("configuring SSL")
	s.runStep(ctx, StepEtcSSL)

	s.logger.Info("configuring HTTP")
	if err := s.services.Restart(ctx, s.opts.WebService); err != nil {
		s.logger.Error("failed to restart service", "service", s.opts.WebService, "error", err)
	}

	s.logger.Info("restarting critical services")
	s.restartServices(ctx, s.opts.CriticalServices, s.opts.CriticalRestartTimeout)

	s.logger.Info("allowing network traffic")
	if err := s.firewall.AcceptAll(ctx); err != nil {
		s.logger.Error("error allowing network traffic", "error", err)
	}
}

func (s *Service) backgroundMasterSteps(ctx context.Context) {
	s.logger.Info("regenerating cron")
	s.runStep(ctx, StepEtcCron)

	s.logger.Info("syncing disks")
	s.runStep(ctx, StepDiskSync)

	s.logger.Info("syncing enclosure")
	s.runStep(ctx, StepEnclosureSync)

	s.logger.Info("restarting remaining services")
	s.restartServices(ctx, s.opts.Services, s.opts.RestartTimeout)

	s.runStep(ctx, StepWorkloads)

	s.logger.Info("initializing alert system")
	s.runStep(ctx, StepAlertsInit)

	if s.kmip != nil {
		enabled, err := s.kmip.Enabled(ctx)
		if err != nil {
			s.logger.Warn("failed to read KMIP configuration", "error", err)
		} else if enabled {
			s.logger.Info("syncing encryption keys with KMIP server")
			if err := s.kmip.Initialize(ctx); err != nil {
				s.logger.Error("failed to initialize KMIP keys", "error", err)
			}
		}
	}
	s.logger.Info("failover background steps complete")
}

// groupStates splits the other members of ifname's failover group by their
// local VRRP role.
func (s *Service) groupStates(ctx context.Context, data EventData, ifname string) (masters, backups []string, err error) {
	group := data.groupOf(ifname)
	if len(group) <= 1 {
		return nil, nil, nil
	}
	states, err := s.interfaces.VRRPStates(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range group {
		if name == ifname {
			continue
		}
		switch states[name] {
		case VRRPMaster:
			masters = append(masters, name)
		case VRRPBackup:
			backups = append(backups, name)
		}
	}
	slices.Sort(masters)
	slices.Sort(backups)
	return masters, backups, nil
}

func (s *Service) stopFencing(ctx context.Context) {
	if err := s.fencer.Stop(ctx); err != nil {
		s.logger.Warn("failed to stop fenced", "error", err)
	}
}

func (s *Service) runStep(ctx context.Context, step string) {
	if err := s.system.Run(ctx, step); err != nil {
		s.logger.Error("failover step failed", "step", step, "error", err)
	}
}
