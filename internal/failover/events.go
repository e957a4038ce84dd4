package failover

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

// Transition lock and method names.
const (
	LockMaster   = "vrrp_master"
	LockBackup   = "vrrp_backup"
	MethodMaster = "failover.events.vrrp_master"
	MethodBackup = "failover.events.vrrp_backup"
)

// Event handles one link-state notification. It returns the transition job
// when the event was accepted, or an error wrapping ErrIgnoreEvent when it
// was dropped. Accepted events refresh the cached status once the job ends.
func (s *Service) Event(ctx context.Context, ifname string, kind EventKind) (*job.Job, error) {
	ctx, span := s.startSpan(ctx, "failover.Event",
		attribute.String("failover.ifname", ifname),
		attribute.String("failover.event", string(kind)),
	)
	defer span.End()

	switch kind {
	case EventMaster, EventBackup, EventForceTakeover:
	default:
		err := fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, kind)
		spanRecordError(span, err)
		return nil, err
	}

	j, err := s.admit(ctx, ifname, kind)
	if err != nil {
		if errors.Is(err, ErrIgnoreEvent) {
			s.metrics.IncFailoverEvent(s.nodeID, string(kind), "ignored")
			span.SetAttributes(attribute.Bool("failover.ignored", true))
			return nil, err
		}
		s.metrics.IncFailoverEvent(s.nodeID, string(kind), "error")
		s.logger.Error("failed to handle failover event", "ifname", ifname, "event", kind, "error", err)
		spanRecordError(span, err)
		return nil, err
	}
	s.metrics.IncFailoverEvent(s.nodeID, string(kind), "accepted")
	span.SetAttributes(attribute.String("failover.job_id", j.ID()))

	s.goBackground(func() {
		<-j.Done()
		if _, err := s.RefreshStatus(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to refresh failover status", "error", err)
		}
	})
	return j, nil
}

// admit validates an event and, when accepted, submits the transition job.
// Validation and submission happen under admitMu.
func (s *Service) admit(ctx context.Context, ifname string, kind EventKind) (*job.Job, error) {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	if err := s.checkInFlight(ifname, kind); err != nil {
		return nil, err
	}

	data, err := s.eventData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failover: build event data: %w", err)
	}
	if err := s.validate(data, ifname, kind); err != nil {
		return nil, err
	}

	args := []string{ifname, string(kind)}
	jobCtx := context.WithoutCancel(ctx)
	if kind == EventBackup {
		return s.jobs.Submit(jobCtx, LockBackup, MethodBackup, args, func(ctx context.Context, j *job.Job) (any, error) {
			return s.runTransition(ctx, j, Event{Interface: ifname, Kind: kind}, func(ctx context.Context) (Result, error) {
				return s.becomeBackup(ctx, j, data, ifname)
			})
		}), nil
	}
	return s.jobs.Submit(jobCtx, LockMaster, MethodMaster, args, func(ctx context.Context, j *job.Job) (any, error) {
		return s.runTransition(ctx, j, Event{Interface: ifname, Kind: kind}, func(ctx context.Context) (Result, error) {
			return s.becomeMaster(ctx, j, data, ifname, kind)
		})
	}), nil
}

// checkInFlight refuses any event while a transition job is waiting or running.
func (s *Service) checkInFlight(ifname string, kind EventKind) error {
	for _, cur := range s.jobs.Active(MethodMaster, MethodBackup) {
		args := cur.Args()
		if len(args) < 2 {
			continue
		}
		curIface, curEvent := args[0], EventKind(args[1])
		if curIface == ifname && curEvent == kind {
			s.logger.Info("ignoring duplicate failover event",
				"ifname", ifname, "event", kind, "job_id", cur.ID())
		} else {
			s.logger.Warn("ignoring failover event while another event is in progress",
				"ifname", ifname, "event", kind,
				"current_ifname", curIface, "current_event", curEvent, "job_id", cur.ID())
		}
		return ErrIgnoreEvent
	}
	return nil
}

// validate applies the configuration, interface and pool checks.
func (s *Service) validate(data EventData, ifname string, kind EventKind) error {
	if kind == EventForceTakeover {
		return nil
	}

	if data.Disabled {
		if !data.Master {
			s.logger.Warn("failover is disabled but this node is marked as the BACKUP node, assuming BACKUP",
				"ifname", ifname, "event", kind)
		}
		return ErrIgnoreEvent
	}

	if slices.Contains(data.NonCritical, ifname) {
		s.logger.Warn("ignoring state change on non-critical interface", "ifname", ifname, "event", kind)
		return ErrIgnoreEvent
	}

	if kind == EventMaster {
		needsImport := slices.ContainsFunc(data.Pools, func(p Pool) bool { return p.Status == PoolOffline })
		if !needsImport {
			s.logger.Warn("received a MASTER event but pools are already imported, ignoring", "ifname", ifname)
			return ErrIgnoreEvent
		}
	}
	return nil
}

// eventData assembles the snapshot consumed by a transition job.
func (s *Service) eventData(ctx context.Context) (EventData, error) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return EventData{}, fmt.Errorf("load config: %w", err)
	}
	pools, err := s.storage.Pools(ctx)
	if err != nil {
		return EventData{}, fmt.Errorf("query pools: %w", err)
	}
	ifaces, err := s.interfaces.List(ctx)
	if err != nil {
		return EventData{}, fmt.Errorf("list interfaces: %w", err)
	}

	data := EventData{
		Disabled:    cfg.Disabled,
		Master:      s.isConfiguredMaster(cfg),
		Timeout:     cfg.Timeout,
		Groups:      make(map[int][]string),
		Pools:       slices.Clone(pools),
		NonCritical: make([]string, 0),
		Internal:    make([]string, 0),
	}
	for _, iface := range ifaces {
		switch {
		case iface.Internal:
			data.Internal = append(data.Internal, iface.Name)
		case iface.Critical:
			data.Groups[iface.Group] = append(data.Groups[iface.Group], iface.Name)
		default:
			data.NonCritical = append(data.NonCritical, iface.Name)
		}
	}
	return data, nil
}

func (s *Service) isConfiguredMaster(cfg Config) bool {
	slot := s.identity.NodeSlot()
	return slot != NodeManual && cfg.MasterNode == slot
}

// runTransition wraps a transition body with metrics, tracing and the
// terminal-result bookkeeping shared by MASTER and BACKUP.
func (s *Service) runTransition(ctx context.Context, j *job.Job, ev Event, body func(context.Context) (Result, error)) (any, error) {
	ctx, span := s.startSpan(ctx, "failover.Transition",
		attribute.String("failover.ifname", ev.Interface),
		attribute.String("failover.event", string(ev.Kind)),
		attribute.String("failover.job_id", j.ID()),
	)
	defer span.End()

	start := s.now()
	result, err := body(ctx)
	switch {
	case errors.Is(err, ErrIgnoreEvent):
		j.SetProgress(ProgressIgnored)
		s.metrics.ObserveFailoverTransition(s.nodeID, string(ev.Kind), "IGNORED", s.now().Sub(start))
		return nil, err
	case err != nil:
		j.SetProgress(ProgressError)
		result = ResultError
		spanRecordError(span, err)
	}

	s.metrics.ObserveFailoverTransition(s.nodeID, string(ev.Kind), string(result), s.now().Sub(start))
	rec := TransitionRecord{JobID: j.ID(), Event: ev, Result: result, Finished: s.now()}
	if err != nil {
		rec.Error = err.Error()
	}
	s.state.recordTransition(rec)
	return result, err
}
