package failover

import (
	"context"
	"fmt"
)

// Status returns the node-level failover status. A change is announced on
// the failover.status topic.
func (s *Service) Status(ctx context.Context) (Status, error) {
	ctx, span := s.startSpan(ctx, "failover.Status")
	defer span.End()

	st, err := s.status(ctx)
	if err != nil {
		spanRecordError(span, err)
		return "", err
	}
	if prev := s.state.swapStatus(st, s.now()); prev != st {
		s.notifier.Send("failover.status", "CHANGED", map[string]any{"status": string(st)})
	}
	return st, nil
}

// RefreshStatus drops the cached status, then recomputes the status and the
// disabled reasons.
func (s *Service) RefreshStatus(ctx context.Context) (Status, error) {
	s.state.dropStatus()
	st, err := s.Status(ctx)
	if err != nil {
		return "", err
	}
	if _, err := s.DisabledReasons(ctx); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Service) status(ctx context.Context) (Status, error) {
	if cached, ok := s.state.cachedStatus(s.now(), s.opts.StatusTTL); ok && cacheable(cached) {
		if !s.transitionRunning() {
			return cached, nil
		}
	}

	local, err := s.localStatus(ctx)
	if err != nil {
		return "", err
	}
	if local != "" {
		return local, nil
	}

	pctx, cancel := s.peerContext(ctx)
	defer cancel()
	imported, err := s.peer.ImportedPools(pctx)
	if err != nil {
		s.logger.Warn("failed checking failover status on the peer", "error", err)
		return StatusUnknown, nil
	}
	if len(imported) == 0 {
		return StatusError, nil
	}
	return StatusBackup, nil
}

// localStatus answers from local knowledge only. An empty status means the
// peer has to be asked.
func (s *Service) localStatus(ctx context.Context) (Status, error) {
	licensed, err := s.Licensed(ctx)
	if err != nil {
		return "", err
	}
	if !licensed {
		return StatusSingle, nil
	}

	for _, j := range s.jobs.Running(MethodMaster) {
		switch j.Progress() {
		case ProgressElecting:
			return StatusElecting, nil
		case ProgressImporting:
			return StatusImporting, nil
		}
	}

	imported, err := s.storage.ImportedPools(ctx)
	if err != nil {
		return "", fmt.Errorf("failover: query imported pools: %w", err)
	}
	if len(imported) > 0 {
		return StatusMaster, nil
	}
	return "", nil
}

// Licensed reports whether this node holds an HA license. The answer is
// cached until the state is reset.
func (s *Service) Licensed(ctx context.Context) (bool, error) {
	if v, ok := s.state.cachedLicense(); ok {
		return v, nil
	}
	v, err := s.identity.Licensed(ctx)
	if err != nil {
		return false, fmt.Errorf("failover: read license: %w", err)
	}
	s.state.setLicense(v)
	return v, nil
}

// InProgress reports whether a transition job is running.
func (s *Service) InProgress() bool {
	return len(s.jobs.Running(MethodMaster, MethodBackup)) > 0
}

// LastTransition returns the last terminal transition outcome.
func (s *Service) LastTransition() (TransitionRecord, bool) {
	return s.state.LastTransition()
}

func (s *Service) transitionRunning() bool {
	return len(s.jobs.Running(MethodMaster)) > 0
}

// cacheable reports whether st is stable enough to cache.
func cacheable(st Status) bool {
	switch st {
	case StatusMaster, StatusBackup, StatusSingle:
		return true
	default:
		return false
	}
}
