package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

// SystemOptions configures System.
type SystemOptions struct {
	// HooksDir holds one executable per host step, named after the step.
	HooksDir string
	// ReadyFile exists once the host finished booting.
	ReadyFile string
	Version   string
}

// System runs host step hooks and reports readiness.
type System struct {
	opts   SystemOptions
	runner sysexec.Runner
	logger Logger

	mu     sync.Mutex
	reboot *time.Timer
}

var _ failover.System = (*System)(nil)

// NewSystem returns a System.
func NewSystem(opts SystemOptions, runner sysexec.Runner, logger Logger) *System {
	return &System{opts: opts, runner: runner, logger: logger}
}

// Run executes the hook for step. A missing hook is a no-op.
func (s *System) Run(ctx context.Context, step string) error {
	path := filepath.Join(s.opts.HooksDir, step)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no hook for host step", "step", step)
		return nil
	}
	if _, err := s.runner.Output(ctx, path); err != nil {
		return fmt.Errorf("host: step %s: %w", step, err)
	}
	return nil
}

func (s *System) Ready(context.Context) (bool, error) {
	_, err := os.Stat(s.opts.ReadyFile)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("host: ready file: %w", err)
	}
}

func (s *System) Version() string { return s.opts.Version }

// Reboot schedules systemctl reboot after delay. A second call replaces the
// pending schedule.
func (s *System) Reboot(_ context.Context, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reboot != nil {
		s.reboot.Stop()
	}
	s.logger.Warn("reboot scheduled", "delay", delay)
	s.reboot = time.AfterFunc(delay, func() {
		if _, err := s.runner.Output(context.Background(), "systemctl", "reboot"); err != nil {
			s.logger.Error("reboot failed", "error", err)
		}
	})
	return nil
}
