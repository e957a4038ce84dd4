package failover

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

// Options tunes a Service. Zero values are replaced by DefaultOptions.
type Options struct {
	NodeID string

	// ExportTimeout bounds pool export during a BACKUP transition. When it
	// elapses the node reboots through the emergency path.
	ExportTimeout time.Duration
	// PeerTimeout bounds every peer call on the failure-detection path.
	PeerTimeout time.Duration
	// StatusTTL is how long a stable status stays cached.
	StatusTTL time.Duration

	CriticalRestartTimeout time.Duration
	RestartTimeout         time.Duration

	// CriticalServices are restarted first, synchronously, on MASTER.
	CriticalServices []string
	// Services are the remaining services restarted in the background.
	Services []string

	WebService    string
	VIPService    string
	SyslogService string
	SSHService    string
	// BackupStopServices are stopped on BACKUP.
	BackupStopServices []string

	AltRoot string

	// DatabasePath is the configuration database pushed to the peer.
	DatabasePath string
	// SyncFiles are small files pushed to the peer on SyncToPeer.
	SyncFiles []string
	// CacheFilePath is the pool cache-file, pushed last.
	CacheFilePath string
	// ReceiveAllowList restricts which paths the peer may write here.
	ReceiveAllowList []string
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		ExportTimeout:          4 * time.Second,
		PeerTimeout:            5 * time.Second,
		StatusTTL:              300 * time.Second,
		CriticalRestartTimeout: 15 * time.Second,
		RestartTimeout:         60 * time.Second,
		CriticalServices:       []string{"iscsitarget", "cifs", "nfs"},
		WebService:             "http",
		VIPService:             "keepalived",
		SyslogService:          "syslogd",
		SSHService:             "ssh",
		BackupStopServices:     []string{"smartd", "rrdcached"},
		AltRoot:                "/mnt",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ExportTimeout <= 0 {
		o.ExportTimeout = d.ExportTimeout
	}
	if o.PeerTimeout <= 0 {
		o.PeerTimeout = d.PeerTimeout
	}
	if o.StatusTTL <= 0 {
		o.StatusTTL = d.StatusTTL
	}
	if o.CriticalRestartTimeout <= 0 {
		o.CriticalRestartTimeout = d.CriticalRestartTimeout
	}
	if o.RestartTimeout <= 0 {
		o.RestartTimeout = d.RestartTimeout
	}
	if o.CriticalServices == nil {
		o.CriticalServices = d.CriticalServices
	}
	if o.WebService == "" {
		o.WebService = d.WebService
	}
	if o.VIPService == "" {
		o.VIPService = d.VIPService
	}
	if o.SyslogService == "" {
		o.SyslogService = d.SyslogService
	}
	if o.SSHService == "" {
		o.SSHService = d.SSHService
	}
	if o.BackupStopServices == nil {
		o.BackupStopServices = d.BackupStopServices
	}
	if o.AltRoot == "" {
		o.AltRoot = d.AltRoot
	}
	return o
}

// Deps are the collaborators of a Service. Logger, Config, Storage, Fencer,
// Services, Firewall, Interfaces, System, Identity and Peer are required.
type Deps struct {
	Logger     Logger
	Tracer     oteltrace.Tracer
	Metrics    Metrics
	Jobs       *job.Runner
	Config     ConfigStore
	Flags      FlagStore
	Storage    Storage
	Fencer     Fencer
	Services   ServiceManager
	Firewall   Firewall
	Interfaces Interfaces
	System     System
	Disks      Disks
	Rebooter   Rebooter
	Sentinel   Sentinel
	Alerts     Alerts
	KMIP       KMIP
	Identity   Identity
	Peer       Peer
	Notifier   Notifier
}

// Service owns the failover state machine and its lifecycle-scoped state.
type Service struct {
	opts    Options
	nodeID  string
	logger  Logger
	tracer  oteltrace.Tracer
	metrics Metrics
	jobs    *job.Runner

	config     ConfigStore
	flags      FlagStore
	storage    Storage
	fencer     Fencer
	services   ServiceManager
	firewall   Firewall
	interfaces Interfaces
	system     System
	disks      Disks
	rebooter   Rebooter
	sentinel   Sentinel
	alerts     Alerts
	kmip       KMIP
	identity   Identity
	peer       Peer
	notifier   Notifier

	state *State
	keys  *KeyCache

	// admitMu serializes validation and job submission so two events can
	// never both pass the in-flight check.
	admitMu sync.Mutex
	// bg tracks detached work (background MASTER steps, post-event refresh).
	bg sync.WaitGroup

	now func() time.Time
}

// New builds a Service.
func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("failover: logger is required")
	case deps.Config == nil:
		return nil, errors.New("failover: config store is required")
	case deps.Storage == nil:
		return nil, errors.New("failover: storage is required")
	case deps.Fencer == nil:
		return nil, errors.New("failover: fencer is required")
	case deps.Services == nil:
		return nil, errors.New("failover: service manager is required")
	case deps.Firewall == nil:
		return nil, errors.New("failover: firewall is required")
	case deps.Interfaces == nil:
		return nil, errors.New("failover: interfaces are required")
	case deps.System == nil:
		return nil, errors.New("failover: system is required")
	case deps.Identity == nil:
		return nil, errors.New("failover: identity is required")
	case deps.Peer == nil:
		return nil, errors.New("failover: peer client is required")
	}

	opts = opts.withDefaults()
	s := &Service{
		opts:       opts,
		nodeID:     opts.NodeID,
		logger:     deps.Logger,
		tracer:     deps.Tracer,
		metrics:    deps.Metrics,
		jobs:       deps.Jobs,
		config:     deps.Config,
		flags:      deps.Flags,
		storage:    deps.Storage,
		fencer:     deps.Fencer,
		services:   deps.Services,
		firewall:   deps.Firewall,
		interfaces: deps.Interfaces,
		system:     deps.System,
		disks:      deps.Disks,
		rebooter:   deps.Rebooter,
		sentinel:   deps.Sentinel,
		alerts:     deps.Alerts,
		kmip:       deps.KMIP,
		identity:   deps.Identity,
		peer:       deps.Peer,
		notifier:   deps.Notifier,
		state:      NewState(),
		keys:       NewKeyCache(),
		now:        time.Now,
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("failover")
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.jobs == nil {
		s.jobs = job.NewRunner(deps.Logger)
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.flags == nil {
		s.flags = &memoryFlags{values: make(map[string]bool)}
	}
	if s.rebooter == nil {
		s.rebooter = unavailableRebooter{}
	}
	if s.sentinel == nil {
		s.sentinel = noopSentinel{}
	}
	if s.alerts == nil {
		s.alerts = noopAlerts{}
	}
	return s, nil
}

// Jobs returns the runner executing transition and sync jobs.
func (s *Service) Jobs() *job.Runner { return s.jobs }

// Keys returns the encryption-key cache.
func (s *Service) Keys() *KeyCache { return s.keys }

// Wait blocks until detached background work finishes or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) goBackground(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

// peerContext derives a context bounded by the peer timeout.
func (s *Service) peerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.PeerTimeout)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func spanRecordError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

type discardNotifier struct{}

func (discardNotifier) Send(string, string, map[string]any) {}

type memoryFlags struct {
	mu     sync.Mutex
	values map[string]bool
}

func (f *memoryFlags) Flag(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *memoryFlags) SetFlag(_ context.Context, key string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

type unavailableRebooter struct{}

func (unavailableRebooter) EmergencyReboot() error {
	return errors.New("failover: emergency reboot is not configured")
}

type noopSentinel struct{}

func (noopSentinel) Mark() error  { return nil }
func (noopSentinel) Clear() error { return nil }

type noopAlerts struct{}

func (noopAlerts) OneshotCreate(context.Context, string, map[string]string) error { return nil }
func (noopAlerts) OneshotDelete(context.Context, string) error                    { return nil }
