package fenced

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/sysexec/sysexectest"
)

func newGateway(t *testing.T, runner *sysexectest.Runner) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Options{Binary: "fenced", PIDFile: filepath.Join(t.TempDir(), "fenced.pid")}, runner, logger)
}

func writePID(t *testing.T, g *Gateway, content string) {
	t.Helper()
	if err := os.WriteFile(g.pidFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write pid-file: %v", err)
	}
}

func TestGateway_StartExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		force bool
		code  int
		line  string
	}{
		{name: "ok", line: "fenced --pidfile %s", code: failover.FencedOK},
		{name: "running remote", line: "fenced --pidfile %s", code: failover.FencedRunningRemote},
		{name: "forced already running", force: true, line: "fenced --pidfile %s --force", code: failover.FencedAlreadyRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := sysexectest.New()
			g := newGateway(t, runner)
			runner.OnPrefix("fenced", sysexectest.Response{Code: tt.code})

			code, err := g.Start(context.Background(), tt.force)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if code != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, code)
			}
			calls := runner.Calls()
			want := fmt.Sprintf(tt.line, g.pidFile)
			if len(calls) != 1 || calls[0] != want {
				t.Fatalf("expected %q, got %v", want, calls)
			}
		})
	}
}

func TestGateway_StartFailsWhenBinaryMissing(t *testing.T) {
	runner := sysexectest.New().OnPrefix("fenced", sysexectest.Response{Err: os.ErrNotExist})
	g := newGateway(t, runner)

	if _, err := g.Start(context.Background(), false); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestGateway_RunningFollowsPIDFile(t *testing.T) {
	g := newGateway(t, sysexectest.New())
	g.kill = func(pid int, sig unix.Signal) error {
		if pid == 42 {
			return nil
		}
		return unix.ESRCH
	}

	ok, err := g.Running(context.Background())
	if err != nil || ok {
		t.Fatalf("expected not running without pid-file, got %v (err %v)", ok, err)
	}

	writePID(t, g, "42\n")
	if ok, _ := g.Running(context.Background()); !ok {
		t.Fatal("expected running for a live pid")
	}

	writePID(t, g, "43\n")
	if ok, _ := g.Running(context.Background()); ok {
		t.Fatal("expected not running for a dead pid")
	}

	writePID(t, g, "garbage")
	if _, err := g.Running(context.Background()); err == nil {
		t.Fatal("expected error for a malformed pid-file")
	}
}

func TestGateway_StopSignalsAndWaits(t *testing.T) {
	g := newGateway(t, sysexectest.New())
	writePID(t, g, "42")

	var (
		mu      sync.Mutex
		signals []unix.Signal
		alive   = true
	)
	g.kill = func(pid int, sig unix.Signal) error {
		mu.Lock()
		defer mu.Unlock()
		signals = append(signals, sig)
		if sig == unix.SIGTERM {
			alive = false
			return nil
		}
		if alive {
			return nil
		}
		return unix.ESRCH
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(signals) < 2 || signals[0] != unix.SIGTERM {
		t.Fatalf("expected SIGTERM then a liveness probe, got %v", signals)
	}
}

func TestGateway_StopNoopWhenNotRunning(t *testing.T) {
	g := newGateway(t, sysexectest.New())
	g.kill = func(int, unix.Signal) error {
		t.Fatal("expected no signal without a pid-file")
		return nil
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_StopToleratesExitedProcess(t *testing.T) {
	g := newGateway(t, sysexectest.New())
	writePID(t, g, "42")
	g.kill = func(int, unix.Signal) error { return unix.ESRCH }

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
