package ingress

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/job"
)

// EventHandler receives validated link-state events.
// *failover.Service satisfies this interface.
type EventHandler interface {
	Event(ctx context.Context, ifname string, kind failover.EventKind) (*job.Job, error)
}

// Notifier publishes raw VRRP events.
type Notifier interface {
	Send(topic, action string, fields map[string]any)
}

// Logger is the logging surface used by the reader.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Reader consumes keepalived notify lines from a FIFO.
type Reader struct {
	path     string
	handler  EventHandler
	tracker  *Tracker
	notifier Notifier
	logger   Logger
}

// NewReader returns a reader for the FIFO at path.
func NewReader(path string, handler EventHandler, tracker *Tracker, notifier Notifier, logger Logger) *Reader {
	return &Reader{path: path, handler: handler, tracker: tracker, notifier: notifier, logger: logger}
}

// Run creates the FIFO when missing and consumes it until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	if err := ensureFIFO(r.path); err != nil {
		return err
	}

	// Opening read-write keeps the FIFO from reporting EOF when keepalived
	// closes its end between notifications.
	f, err := os.OpenFile(r.path, os.O_RDWR, 0) //nolint:gosec // path comes from configuration.
	if err != nil {
		return fmt.Errorf("ingress: open %s: %w", r.path, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer func() {
		if stop() {
			_ = f.Close()
		}
	}()

	r.logger.Info("listening for VRRP notifications", "path", r.path)
	err = r.Consume(ctx, f)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Consume reads notify lines from src until EOF or ctx is done.
func (r *Reader) Consume(ctx context.Context, src io.Reader) error {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		r.handleLine(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("ingress: read notifications: %w", err)
	}
	return nil
}

func (r *Reader) handleLine(ctx context.Context, line string) {
	n, ok, err := ParseNotifyLine(line)
	if err != nil {
		r.logger.Warn("ignoring malformed VRRP notification", "line", line, "error", err)
		return
	}
	// FAULT and STOP replace the last role too.
	if r.tracker != nil {
		r.tracker.Set(n.Interface, n.State)
	}
	if !ok {
		r.logger.Info("VRRP state recorded without failover event", "ifname", n.Interface, "state", n.State)
		return
	}

	r.notifier.Send("failover.vrrp_event", "CHANGED", map[string]any{
		"ifname": n.Interface,
		"event":  string(n.Kind),
	})

	j, err := r.handler.Event(ctx, n.Interface, n.Kind)
	switch {
	case errors.Is(err, failover.ErrIgnoreEvent):
		r.logger.Debug("VRRP event ignored", "ifname", n.Interface, "event", n.Kind)
	case err != nil:
		r.logger.Error("failed to submit VRRP event", "ifname", n.Interface, "event", n.Kind, "error", err)
	default:
		r.logger.Info("VRRP event accepted", "ifname", n.Interface, "event", n.Kind, "job_id", j.ID())
	}
}

func ensureFIFO(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("ingress: %s exists and is not a FIFO", path)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := unix.Mkfifo(path, 0o600); err != nil {
			return fmt.Errorf("ingress: create FIFO %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("ingress: stat %s: %w", path, err)
	}
}
