package host

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Notifier publishes events on the notification bus.
type Notifier interface {
	Send(topic, action string, fields map[string]any)
}

// Alerts keeps one-shot alerts in memory and announces them on the bus.
type Alerts struct {
	logger   Logger
	notifier Notifier

	mu     sync.Mutex
	active map[string]map[string]string
}

var _ failover.Alerts = (*Alerts)(nil)

// NewAlerts returns an empty alert set.
func NewAlerts(logger Logger, notifier Notifier) *Alerts {
	return &Alerts{logger: logger, notifier: notifier, active: make(map[string]map[string]string)}
}

func (a *Alerts) OneshotCreate(_ context.Context, kind string, args map[string]string) error {
	a.mu.Lock()
	a.active[kind] = maps.Clone(args)
	a.mu.Unlock()

	a.logger.Warn("alert raised", "kind", kind, "args", args)
	fields := map[string]any{"kind": kind}
	for k, v := range args {
		fields[k] = v
	}
	a.notifier.Send("alert.list", "ADDED", fields)
	return nil
}

func (a *Alerts) OneshotDelete(_ context.Context, kind string) error {
	a.mu.Lock()
	_, ok := a.active[kind]
	delete(a.active, kind)
	a.mu.Unlock()

	if ok {
		a.logger.Info("alert cleared", "kind", kind)
		a.notifier.Send("alert.list", "REMOVED", map[string]any{"kind": kind})
	}
	return nil
}

// Active returns the kinds of the raised alerts, sorted.
func (a *Alerts) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Sorted(maps.Keys(a.active))
}
