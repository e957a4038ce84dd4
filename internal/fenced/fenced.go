// Package fenced drives the SCSI reservation helper that keeps the standby
// controller off the shared disks.
package fenced

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

const (
	defaultBinary  = "/usr/sbin/fenced"
	defaultPIDFile = "/run/fenced.pid"
	stopPoll       = 100 * time.Millisecond
	stopTimeout    = 5 * time.Second
)

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a Gateway. Zero values fall back to the defaults.
type Options struct {
	Binary  string
	PIDFile string
}

// Gateway starts and stops the fencing helper.
type Gateway struct {
	binary  string
	pidFile string
	runner  sysexec.Runner
	logger  Logger
	kill    func(pid int, sig unix.Signal) error
}

var _ failover.Fencer = (*Gateway)(nil)

// New returns a Gateway that runs commands through runner.
func New(opts Options, runner sysexec.Runner, logger Logger) *Gateway {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.PIDFile == "" {
		opts.PIDFile = defaultPIDFile
	}
	return &Gateway{
		binary:  opts.Binary,
		pidFile: opts.PIDFile,
		runner:  runner,
		logger:  logger,
		kill:    unix.Kill,
	}
}

// Start launches the helper, which daemonizes once the reservations are
// placed. The returned code follows the helper's exit-code contract; only a
// failure to run the binary at all is reported as an error.
func (g *Gateway) Start(ctx context.Context, force bool) (int, error) {
	args := []string{"--pidfile", g.pidFile}
	if force {
		args = append(args, "--force")
	}

	_, err := g.runner.Output(ctx, g.binary, args...)
	if err == nil {
		g.logger.Info("fenced started", "force", force)
		return failover.FencedOK, nil
	}
	if code, ok := sysexec.ExitCode(err); ok {
		g.logger.Warn("fenced exited", "force", force, "code", code)
		return code, nil
	}
	return 0, fmt.Errorf("fenced: start: %w", err)
}

// Stop signals the running helper and waits for it to exit. It is a no-op
// when the helper is not running.
func (g *Gateway) Stop(ctx context.Context) error {
	pid, ok, err := g.pid()
	if err != nil || !ok {
		return err
	}

	if err := g.kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("fenced: signal %d: %w", pid, err)
	}

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	ticker := time.NewTicker(stopPoll)
	defer ticker.Stop()
	for {
		if !g.alive(pid) {
			g.logger.Info("fenced stopped", "pid", pid)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("fenced: wait for %d to exit: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Running reports whether the pid-file names a live process.
func (g *Gateway) Running(context.Context) (bool, error) {
	pid, ok, err := g.pid()
	if err != nil || !ok {
		return false, err
	}
	return g.alive(pid), nil
}

func (g *Gateway) alive(pid int) bool {
	err := g.kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (g *Gateway) pid() (int, bool, error) {
	raw, err := os.ReadFile(g.pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("fenced: read pid-file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false, fmt.Errorf("fenced: malformed pid-file %s: %q", g.pidFile, raw)
	}
	return pid, true, nil
}
