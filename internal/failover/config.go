package failover

import (
	"context"
	"errors"
	"fmt"
)

// Config returns the persisted failover configuration.
func (s *Service) Config(ctx context.Context) (Config, error) {
	return s.config.Load(ctx)
}

// ConfiguredMaster reports whether this node is the configured master node.
func (s *Service) ConfiguredMaster(ctx context.Context) (bool, error) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return false, err
	}
	return s.isConfiguredMaster(cfg), nil
}

// UpdateConfig applies patch to the failover configuration. Enabling
// failover requires a critical interface. When the resulting configuration
// is disabled the configured master node is forced MASTER.
func (s *Service) UpdateConfig(ctx context.Context, patch ConfigPatch) (Config, error) {
	ctx, span := s.startSpan(ctx, "failover.UpdateConfig")
	defer span.End()

	cfg, err := s.config.Load(ctx)
	if err != nil {
		spanRecordError(span, err)
		return Config{}, err
	}
	if patch.Disabled != nil {
		cfg.Disabled = *patch.Disabled
	}
	if patch.Timeout != nil {
		if *patch.Timeout < 0 {
			return Config{}, fmt.Errorf("%w: timeout must not be negative", ErrInvalidArgument)
		}
		cfg.Timeout = *patch.Timeout
	}
	if patch.Master != nil {
		node, err := s.masterNode(*patch.Master)
		if err != nil {
			return Config{}, err
		}
		cfg.MasterNode = node
	}

	if !cfg.Disabled {
		ok, err := s.hasCriticalInterface(ctx)
		if err != nil {
			spanRecordError(span, err)
			return Config{}, err
		}
		if !ok {
			return Config{}, ErrNoCriticalInterfaces
		}
	}

	if err := s.config.Save(ctx, cfg); err != nil {
		spanRecordError(span, err)
		return Config{}, fmt.Errorf("failover: save config: %w", err)
	}
	s.logger.Info("failover config updated",
		"disabled", cfg.Disabled, "master_node", cfg.MasterNode, "timeout", cfg.Timeout)

	if cfg.Disabled {
		if s.isConfiguredMaster(cfg) {
			if _, err := s.ForceMaster(ctx); err != nil {
				spanRecordError(span, err)
				return cfg, err
			}
		} else {
			pctx, cancel := s.peerContext(ctx)
			err := s.peer.ForceMaster(pctx)
			cancel()
			if err != nil {
				s.logger.Warn("failed to force the peer to become MASTER", "error", err)
			}
		}
	}
	return cfg, nil
}

// Control enables or disables failover. active selects whether this node
// becomes the master node; nil means this node. It reports whether the
// configuration changed.
func (s *Service) Control(ctx context.Context, action ControlAction, active *bool) (bool, error) {
	master := true
	if active != nil {
		master = *active
	}
	node, err := s.masterNode(master)
	if err != nil {
		return false, err
	}

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return false, err
	}
	switch action {
	case ControlEnable:
		if !cfg.Disabled {
			return false, nil
		}
		cfg.Disabled = false
	case ControlDisable:
		if cfg.Disabled {
			return false, nil
		}
		cfg.Disabled = true
	default:
		return false, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, action)
	}
	cfg.MasterNode = node

	if err := s.config.Save(ctx, cfg); err != nil {
		return false, fmt.Errorf("failover: save config: %w", err)
	}
	return true, nil
}

// ForceMaster makes this controller MASTER if it is not already. With
// critical interfaces it submits a forced takeover event; otherwise it
// only reserves the disks.
func (s *Service) ForceMaster(ctx context.Context) (bool, error) {
	licensed, err := s.Licensed(ctx)
	if err != nil {
		return false, err
	}
	if !licensed {
		return false, nil
	}
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	if st == StatusMaster {
		return false, nil
	}

	ifaces, err := s.interfaces.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failover: list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if !iface.Critical || iface.Internal {
			continue
		}
		if _, err := s.Event(ctx, iface.Name, EventForceTakeover); err != nil {
			if errors.Is(err, ErrIgnoreEvent) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	code, err := s.fencer.Start(ctx, true)
	if err != nil {
		return false, fmt.Errorf("failover: start fenced: %w", err)
	}
	s.metrics.IncFailoverFencedStart(s.nodeID, code)
	return code == FencedOK || code == FencedAlreadyRunning, nil
}

// BecomePassive restarts the VIP daemon so virtual addresses leave this node.
func (s *Service) BecomePassive(ctx context.Context) error {
	if err := s.services.Restart(ctx, s.opts.VIPService); err != nil {
		return fmt.Errorf("failover: restart %s: %w", s.opts.VIPService, err)
	}
	return nil
}

// Unlock stores dataset passphrases, replicating them to the peer, and
// forces this controller to become MASTER.
func (s *Service) Unlock(ctx context.Context, keys map[string]string) (bool, error) {
	if len(keys) > 0 {
		if err := s.UpdateEncryptionKeys(ctx, keys, true); err != nil {
			return false, err
		}
	}
	return s.ForceMaster(ctx)
}

// masterNode resolves which slot becomes master when this node is (or is
// not) meant to be the master.
func (s *Service) masterNode(master bool) (MasterNode, error) {
	switch s.identity.NodeSlot() {
	case NodeA:
		if master {
			return NodeA, nil
		}
		return NodeB, nil
	case NodeB:
		if master {
			return NodeB, nil
		}
		return NodeA, nil
	default:
		return "", ErrManualNode
	}
}

func (s *Service) hasCriticalInterface(ctx context.Context) (bool, error) {
	ifaces, err := s.interfaces.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failover: list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Critical {
			return true, nil
		}
	}
	return false, nil
}
