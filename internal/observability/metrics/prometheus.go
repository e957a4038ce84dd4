//revive:disable:var-naming
//revive:disable:exported
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hafailover"

// Prometheus exposes application metrics and can be injected into the
// failover service and the peer transport. It implements both
// internal/failover.Metrics and the peer client metrics through method set
// compatibility, without importing those packages.
type Prometheus struct {
	failoverEventTotal           *prometheus.CounterVec
	failoverTransitionDuration   *prometheus.HistogramVec
	failoverPoolImportTotal      *prometheus.CounterVec
	failoverFencedStartTotal     *prometheus.CounterVec
	failoverExportDuration       *prometheus.HistogramVec
	failoverEmergencyRebootTotal *prometheus.CounterVec
	failoverKeySyncTotal         *prometheus.CounterVec
	failoverDisabledReason       *prometheus.GaugeVec
	peerRPCDuration              *prometheus.HistogramVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		failoverEventTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "event_total",
				Help:      "Link-state events by kind and admission outcome (accepted, ignored, rejected).",
			},
			[]string{"node_id", "kind", "outcome"},
		),
		failoverTransitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "transition_duration_seconds",
				Help:      "Duration of MASTER and BACKUP transitions by result.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"node_id", "kind", "result"},
		),
		failoverPoolImportTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "pool_import_total",
				Help:      "Pool import attempts by result.",
			},
			[]string{"node_id", "result"},
		),
		failoverFencedStartTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "fenced_start_total",
				Help:      "Fencing helper starts by exit code.",
			},
			[]string{"node_id", "code"},
		),
		failoverExportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "export_duration_seconds",
				Help:      "Time spent exporting pools on BACKUP, labelled by whether the export timed out.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"node_id", "timed_out"},
		),
		failoverEmergencyRebootTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "emergency_reboot_total",
				Help:      "Emergency reboots triggered after a failed or stuck export.",
			},
			[]string{"node_id"},
		),
		failoverKeySyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "key_sync_total",
				Help:      "Encryption key pushes to the standby controller by target and result.",
			},
			[]string{"node_id", "target", "result"},
		),
		failoverDisabledReason: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "failover",
				Name:      "disabled_reason",
				Help:      "1 while the named reason keeps failover inoperative.",
			},
			[]string{"node_id", "reason"},
		),
		peerRPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "peer",
				Name:      "rpc_duration_seconds",
				Help:      "Duration of outbound calls to the peer controller by method and gRPC code.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 5},
			},
			[]string{"node_id", "method", "code"},
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	if err := registerOrReuseCounterVec(reg, &m.failoverEventTotal); err != nil {
		return fmt.Errorf("register failover event counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.failoverTransitionDuration); err != nil {
		return fmt.Errorf("register failover transition histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.failoverPoolImportTotal); err != nil {
		return fmt.Errorf("register failover pool import counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.failoverFencedStartTotal); err != nil {
		return fmt.Errorf("register failover fenced start counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.failoverExportDuration); err != nil {
		return fmt.Errorf("register failover export histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.failoverEmergencyRebootTotal); err != nil {
		return fmt.Errorf("register failover emergency reboot counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.failoverKeySyncTotal); err != nil {
		return fmt.Errorf("register failover key sync counter: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.failoverDisabledReason); err != nil {
		return fmt.Errorf("register failover disabled reason gauge: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.peerRPCDuration); err != nil {
		return fmt.Errorf("register peer rpc histogram: %w", err)
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, c **prometheus.HistogramVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseGaugeVec(reg prometheus.Registerer, c **prometheus.GaugeVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func (m *Prometheus) IncFailoverEvent(nodeID, kind, outcome string) {
	m.failoverEventTotal.WithLabelValues(nodeID, kind, outcome).Inc()
}

func (m *Prometheus) ObserveFailoverTransition(nodeID, kind, result string, d time.Duration) {
	m.failoverTransitionDuration.WithLabelValues(nodeID, kind, result).Observe(d.Seconds())
}

func (m *Prometheus) IncFailoverPoolImport(nodeID, result string) {
	m.failoverPoolImportTotal.WithLabelValues(nodeID, result).Inc()
}

func (m *Prometheus) IncFailoverFencedStart(nodeID string, code int) {
	m.failoverFencedStartTotal.WithLabelValues(nodeID, strconv.Itoa(code)).Inc()
}

func (m *Prometheus) ObserveFailoverExport(nodeID string, d time.Duration, timedOut bool) {
	m.failoverExportDuration.WithLabelValues(nodeID, boolString(timedOut)).Observe(d.Seconds())
}

func (m *Prometheus) IncFailoverEmergencyReboot(nodeID string) {
	m.failoverEmergencyRebootTotal.WithLabelValues(nodeID).Inc()
}

func (m *Prometheus) IncFailoverKeySync(nodeID, target, result string) {
	m.failoverKeySyncTotal.WithLabelValues(nodeID, target, result).Inc()
}

func (m *Prometheus) SetFailoverDisabledReason(nodeID, reason string, active bool) {
	if active {
		m.failoverDisabledReason.WithLabelValues(nodeID, reason).Set(1)
		return
	}
	m.failoverDisabledReason.WithLabelValues(nodeID, reason).Set(0)
}

func (m *Prometheus) ObservePeerRPC(nodeID, method, code string, d time.Duration) {
	m.peerRPCDuration.WithLabelValues(nodeID, method, code).Observe(d.Seconds())
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
