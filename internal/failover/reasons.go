package failover

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// AllReasons lists every disabled reason tag.
var AllReasons = []Reason{
	ReasonNoVolume,
	ReasonNoVIP,
	ReasonNoSystemReady,
	ReasonNoPong,
	ReasonNoFailover,
	ReasonNoLicense,
	ReasonDisagreeVIP,
	ReasonMismatchDisks,
	ReasonNoCriticalInterfaces,
	ReasonNoFenced,
}

// DisabledReasons computes why failover is currently inoperative. A change
// notification is sent only when the set differs from the last computation.
func (s *Service) DisabledReasons(ctx context.Context) (Reasons, error) {
	ctx, span := s.startSpan(ctx, "failover.DisabledReasons")
	defer span.End()

	reasons, err := s.computeReasons(ctx)
	if err != nil {
		spanRecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("failover.reasons", len(reasons)))

	for _, r := range AllReasons {
		s.metrics.SetFailoverDisabledReason(s.nodeID, string(r), reasons.Has(r))
	}
	if s.state.swapReasons(reasons) {
		s.notifier.Send("failover.disabled.reasons", "CHANGED", map[string]any{
			"disabled_reasons": reasonStrings(reasons.Sorted()),
		})
	}
	return reasons, nil
}

func (s *Service) computeReasons(ctx context.Context) (Reasons, error) {
	reasons := NewReasons()

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failover: load config: %w", err)
	}
	if cfg.Disabled {
		reasons.Add(ReasonNoFailover)
	}

	ifaces, err := s.interfaces.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failover: list interfaces: %w", err)
	}
	local, err := s.interfaces.VRRPStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failover: read vrrp states: %w", err)
	}

	critical := slices.ContainsFunc(ifaces, func(i Interface) bool { return i.Critical })
	vip := slices.ContainsFunc(ifaces, func(i Interface) bool { return len(i.VIPs) > 0 })
	master := lo.Contains(lo.Values(local), VRRPMaster)

	switch {
	case !critical:
		reasons.Add(ReasonNoCriticalInterfaces)
	case !vip:
		reasons.Add(ReasonNoVIP)
	case master:
		imported, err := s.storage.ImportedPools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failover: query imported pools: %w", err)
		}
		if len(imported) == 0 {
			reasons.Add(ReasonNoVolume)
			break
		}
		running, err := s.fencer.Running(ctx)
		if err != nil {
			s.logger.Warn("failed to read fenced state", "error", err)
		}
		if !running {
			reasons.Add(ReasonNoFenced)
		}
	}

	remote, err := s.peerReasons(ctx, local)
	if err != nil {
		s.logger.Debug("peer is not reachable for disabled reasons", "error", err)
		reasons.Add(ReasonNoPong)
		return reasons, nil
	}
	for r := range remote {
		reasons.Add(r)
	}
	return reasons, nil
}

// peerReasons runs every peer comparison. Any peer failure discards the
// partial result so the caller reports NO_PONG alone.
func (s *Service) peerReasons(ctx context.Context, local map[string]VRRPState) (Reasons, error) {
	ctx, cancel := s.peerContext(ctx)
	defer cancel()

	reasons := NewReasons()
	if err := s.peer.Ping(ctx); err != nil {
		return nil, err
	}

	ready, err := s.peer.SystemReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		reasons.Add(ReasonNoSystemReady)
	}

	imported, err := s.peer.ImportedPools(ctx)
	if err != nil {
		return nil, err
	}
	if len(imported) == 0 {
		reasons.Add(ReasonNoVolume)
	}

	licensed, err := s.peer.Licensed(ctx)
	if err != nil {
		return nil, err
	}
	if !licensed {
		reasons.Add(ReasonNoLicense)
	}

	remote, err := s.peer.VRRPStates(ctx)
	if err != nil {
		return nil, err
	}
	if len(vipDisagreements(local, remote)) > 0 {
		reasons.Add(ReasonDisagreeVIP)
	}

	mismatch, err := s.mismatchDisks(ctx)
	if err != nil {
		return nil, err
	}
	if !mismatch.Empty() {
		reasons.Add(ReasonMismatchDisks)
	}
	return reasons, nil
}

// vipDisagreements describes every way the two nodes' VRRP roles conflict:
// no failover interfaces at all, an interface known to one side only, or
// an interface holding the same role on both nodes.
func vipDisagreements(local, remote map[string]VRRPState) []string {
	names := lo.Uniq(append(lo.Keys(local), lo.Keys(remote)...))
	slices.Sort(names)
	if len(names) == 0 {
		return []string{"there are no failover interfaces"}
	}

	out := make([]string, 0)
	for _, name := range names {
		l, inLocal := local[name]
		r, inRemote := remote[name]
		switch {
		case !inLocal:
			out = append(out, fmt.Sprintf("interface %q is not configured for failover on the local node", name))
		case !inRemote:
			out = append(out, fmt.Sprintf("interface %q is not configured for failover on the remote node", name))
		case l == r:
			out = append(out, fmt.Sprintf("interface %q is %s on both nodes", name, l))
		}
	}
	return out
}

// MismatchDisks compares non-boot disk identities with the peer.
func (s *Service) MismatchDisks(ctx context.Context) (DiskMismatch, error) {
	ctx, cancel := s.peerContext(ctx)
	defer cancel()
	return s.mismatchDisks(ctx)
}

func (s *Service) mismatchDisks(ctx context.Context) (DiskMismatch, error) {
	if s.disks == nil {
		return DiskMismatch{}, nil
	}
	all, err := s.disks.Identities(ctx)
	if err != nil {
		return DiskMismatch{}, fmt.Errorf("failover: local disks: %w", err)
	}
	boot, err := s.disks.BootIdentities(ctx)
	if err != nil {
		return DiskMismatch{}, fmt.Errorf("failover: boot disks: %w", err)
	}
	local := lo.Without(all, boot...)

	remote, err := s.peer.Disks(ctx)
	if err != nil {
		return DiskMismatch{}, err
	}

	missingRemote, missingLocal := lo.Difference(local, remote)
	slices.Sort(missingLocal)
	slices.Sort(missingRemote)
	return DiskMismatch{MissingLocal: missingLocal, MissingRemote: missingRemote}, nil
}

func reasonStrings(rs []Reason) []string {
	return lo.Map(rs, func(r Reason, _ int) string { return string(r) })
}
