package host

import (
	"context"
	"fmt"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

// Systemd manages services through systemctl. Units maps service names to
// unit names; unmapped names are used as-is.
type Systemd struct {
	units  map[string]string
	runner sysexec.Runner
}

var _ failover.ServiceManager = (*Systemd)(nil)

// NewSystemd returns a systemctl service manager.
func NewSystemd(units map[string]string, runner sysexec.Runner) *Systemd {
	return &Systemd{units: units, runner: runner}
}

func (s *Systemd) Start(ctx context.Context, name string) error {
	return s.control(ctx, "start", name)
}

func (s *Systemd) Restart(ctx context.Context, name string) error {
	return s.control(ctx, "restart", name)
}

func (s *Systemd) Stop(ctx context.Context, name string) error {
	return s.control(ctx, "stop", name)
}

// Enabled reports whether the unit is enabled at boot.
func (s *Systemd) Enabled(ctx context.Context, name string) (bool, error) {
	_, err := s.runner.Output(ctx, "systemctl", "is-enabled", "--quiet", s.unit(name))
	if err == nil {
		return true, nil
	}
	if _, ok := sysexec.ExitCode(err); ok {
		return false, nil
	}
	return false, fmt.Errorf("systemd: is-enabled %s: %w", name, err)
}

func (s *Systemd) control(ctx context.Context, verb, name string) error {
	if _, err := s.runner.Output(ctx, "systemctl", verb, s.unit(name)); err != nil {
		return fmt.Errorf("systemd: %s %s: %w", verb, name, err)
	}
	return nil
}

func (s *Systemd) unit(name string) string {
	if u, ok := s.units[name]; ok {
		return u
	}
	return name
}
