package failover

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// restartServices restarts the enabled services among names concurrently.
// Each restart gets its own timeout; failures and timeouts are logged and
// never fail the caller.
func (s *Service) restartServices(ctx context.Context, names []string, timeout time.Duration) {
	enabled := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := s.services.Enabled(ctx, name)
		if err != nil {
			s.logger.Warn("failed to read service state", "service", name, "error", err)
			continue
		}
		if ok {
			enabled = append(enabled, name)
		}
	}

	var eg errgroup.Group
	for _, name := range enabled {
		eg.Go(func() error {
			s.restartWithTimeout(ctx, name, timeout)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Service) restartWithTimeout(ctx context.Context, name string, timeout time.Duration) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("restarting service", "service", name)
	done := make(chan error, 1)
	go func() { done <- s.services.Restart(rctx, name) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("failed to restart service", "service", name, "error", err)
		}
	case <-rctx.Done():
		s.logger.Error("failed to restart service before timeout", "service", name, "timeout", timeout)
	}
}
