package failover

import (
	"context"
	"fmt"
	"time"
)

// exportPools exports every imported pool within ExportTimeout and reports
// whether the emergency reboot was triggered.
//
// Pool export cannot be cancelled, so it runs in its own goroutine and the
// deadline is enforced by racing a timer against it. When the timer wins, or
// the export fails, the node reboots through the kernel emergency path. The
// export is never retried.
func (s *Service) exportPools(ctx context.Context, pools []Pool) bool {
	start := s.now()
	done := make(chan error, 1)
	go func() {
		done <- s.exportAll(ctx, pools)
	}()

	timer := time.NewTimer(s.opts.ExportTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err == nil {
			s.metrics.ObserveFailoverExport(s.nodeID, s.now().Sub(start), false)
			return false
		}
		s.logger.Error("pool export failed", "error", err)
	case <-timer.C:
		s.logger.Error("pool export did not finish before the deadline", "timeout", s.opts.ExportTimeout)
	}

	s.metrics.ObserveFailoverExport(s.nodeID, s.now().Sub(start), true)
	s.emergencyReboot()
	return true
}

func (s *Service) exportAll(ctx context.Context, pools []Pool) error {
	for _, p := range pools {
		if p.Status == PoolOffline {
			continue
		}
		if err := s.storage.Export(ctx, p.Name, true); err != nil {
			return fmt.Errorf("export %q: %w", p.Name, err)
		}
		s.logger.Info("exported pool", "pool", p.Name)
	}
	return nil
}

func (s *Service) emergencyReboot() {
	s.metrics.IncFailoverEmergencyReboot(s.nodeID)
	s.logger.Error("triggering emergency reboot")
	if err := s.rebooter.EmergencyReboot(); err != nil {
		s.logger.Error("emergency reboot failed", "error", err)
	}
}
