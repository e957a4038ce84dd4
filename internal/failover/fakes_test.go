package failover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

var errPeerDown = errors.New("peer unreachable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConfig struct {
	mu  sync.Mutex
	cfg Config
}

func (f *fakeConfig) Load(context.Context) (Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, nil
}

func (f *fakeConfig) Save(_ context.Context, cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

type fakeStorage struct {
	mu sync.Mutex

	pools    []Pool
	imported []string

	// importErr maps guid to the error returned for imports using the cache-file.
	importErr map[string]error
	// retryErr maps guid to the error returned for imports without the cache-file.
	retryErr map[string]error

	exportErr   error
	exportBlock chan struct{}

	imports       []ImportOptions
	exports       []string
	cacheModes    []CacheFileMode
	cacheFileSets []string
	unlocked      map[string]map[string]string
	unlockFailed  []string
}

func (f *fakeStorage) Pools(context.Context) ([]Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.pools), nil
}

func (f *fakeStorage) ImportedPools(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.imported), nil
}

func (f *fakeStorage) Import(_ context.Context, guid string, opts ImportOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports = append(f.imports, opts)
	errs := f.importErr
	if !opts.UseCacheFile {
		errs = f.retryErr
	}
	if err := errs[guid]; err != nil {
		return err
	}
	for _, p := range f.pools {
		if p.GUID == guid {
			f.imported = append(f.imported, p.Name)
		}
	}
	return nil
}

func (f *fakeStorage) Export(_ context.Context, name string, _ bool) error {
	if f.exportBlock != nil {
		<-f.exportBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exportErr != nil {
		return f.exportErr
	}
	f.exports = append(f.exports, name)
	f.imported = slices.DeleteFunc(f.imported, func(n string) bool { return n == name })
	return nil
}

func (f *fakeStorage) SetCacheFile(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheFileSets = append(f.cacheFileSets, name)
	return nil
}

func (f *fakeStorage) CacheFileSetup(_ context.Context, mode CacheFileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheModes = append(f.cacheModes, mode)
	return nil
}

func (f *fakeStorage) UnlockDatasets(_ context.Context, pool string, keys map[string]string) (UnlockResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unlocked == nil {
		f.unlocked = make(map[string]map[string]string)
	}
	f.unlocked[pool] = maps.Clone(keys)
	return UnlockResult{Unlocked: slices.Sorted(maps.Keys(keys)), Failed: f.unlockFailed}, nil
}

func (f *fakeStorage) exported() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.exports)
}

func (f *fakeStorage) importCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imports)
}

type fakeServices struct {
	mu       sync.Mutex
	enabled  map[string]bool
	block    map[string]chan struct{}
	restarts []string
	stops    []string
	starts   []string
}

func (f *fakeServices) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, name)
	return nil
}

func (f *fakeServices) Restart(_ context.Context, name string) error {
	f.mu.Lock()
	ch := f.block[name]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, name)
	return nil
}

func (f *fakeServices) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, name)
	return nil
}

func (f *fakeServices) Enabled(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled[name], nil
}

func (f *fakeServices) restarted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.restarts)
}

func (f *fakeServices) stopped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.stops)
}

type fakeFirewall struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeFirewall) AcceptAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, "accept")
	return nil
}

func (f *fakeFirewall) DropAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, "drop")
	return nil
}

func (f *fakeFirewall) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.actions)
}

type fakeInterfaces struct {
	mu     sync.Mutex
	ifaces []Interface
	states map[string]VRRPState
}

func (f *fakeInterfaces) List(context.Context) ([]Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ifaces), nil
}

func (f *fakeInterfaces) VRRPStates(context.Context) (map[string]VRRPState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.states), nil
}

type fakeSystem struct {
	mu      sync.Mutex
	steps   []string
	ready   bool
	version string
	reboots []time.Duration
}

func (f *fakeSystem) Run(_ context.Context, step string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
	return nil
}

func (f *fakeSystem) Ready(context.Context) (bool, error) { return f.ready, nil }

func (f *fakeSystem) Version() string { return f.version }

func (f *fakeSystem) Reboot(_ context.Context, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reboots = append(f.reboots, delay)
	return nil
}

func (f *fakeSystem) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.steps)
}

type fakeDisks struct {
	all  []string
	boot []string
}

func (f *fakeDisks) Identities(context.Context) ([]string, error)     { return f.all, nil }
func (f *fakeDisks) BootIdentities(context.Context) ([]string, error) { return f.boot, nil }

type fakeRebooter struct {
	mu    sync.Mutex
	count int
}

func (f *fakeRebooter) EmergencyReboot() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

func (f *fakeRebooter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeSentinel struct {
	mu      sync.Mutex
	events  []string
	present bool
}

func (f *fakeSentinel) Mark() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "mark")
	f.present = true
	return nil
}

func (f *fakeSentinel) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "clear")
	f.present = false
	return nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	active map[string]bool
}

func (f *fakeAlerts) OneshotCreate(_ context.Context, kind string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		f.active = make(map[string]bool)
	}
	f.active[kind] = true
	return nil
}

func (f *fakeAlerts) OneshotDelete(_ context.Context, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, kind)
	return nil
}

func (f *fakeAlerts) isActive(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[kind]
}

type fakeIdentity struct {
	slot     MasterNode
	licensed bool
}

func (f *fakeIdentity) NodeSlot() MasterNode                   { return f.slot }
func (f *fakeIdentity) Licensed(context.Context) (bool, error) { return f.licensed, nil }

type sentEvent struct {
	topic  string
	action string
	fields map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeNotifier) Send(topic, action string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{topic: topic, action: action, fields: fields})
}

func (f *fakeNotifier) topic(topic string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEvent, 0)
	for _, e := range f.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	t          *testing.T
	ctrl       *gomock.Controller
	svc        *Service
	fencer     *MockFencer
	peer       *MockPeer
	config     *fakeConfig
	storage    *fakeStorage
	services   *fakeServices
	firewall   *fakeFirewall
	interfaces *fakeInterfaces
	system     *fakeSystem
	disks      *fakeDisks
	rebooter   *fakeRebooter
	sentinel   *fakeSentinel
	alerts     *fakeAlerts
	identity   *fakeIdentity
	notifier   *fakeNotifier
}

// newHarness builds a licensed node "A", configured master, with one
// critical interface eth0 in group 1, an OFFLINE pool "tank" and fenced
// mocks left to the test.
func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		t:      t,
		ctrl:   ctrl,
		fencer: NewMockFencer(ctrl),
		peer:   NewMockPeer(ctrl),
		config: &fakeConfig{cfg: Config{MasterNode: NodeA, Timeout: 2}},
		storage: &fakeStorage{
			pools: []Pool{{Name: "tank", GUID: "111", Status: PoolOffline}},
		},
		services: &fakeServices{enabled: map[string]bool{"nfs": true, "cifs": true, "ssh": true, "ftp": true}},
		firewall: &fakeFirewall{},
		interfaces: &fakeInterfaces{
			ifaces: []Interface{
				{Name: "eth0", Critical: true, Group: 1, VIPs: []string{"10.0.0.10"}},
				{Name: "eth1"},
				{Name: "ntb0", Internal: true},
			},
			states: map[string]VRRPState{"eth0": VRRPMaster},
		},
		system:   &fakeSystem{ready: true, version: "24.4.0"},
		disks:    &fakeDisks{},
		rebooter: &fakeRebooter{},
		sentinel: &fakeSentinel{},
		alerts:   &fakeAlerts{},
		identity: &fakeIdentity{slot: NodeA, licensed: true},
		notifier: &fakeNotifier{},
	}

	o := Options{
		NodeID:        "node-a",
		ExportTimeout: 200 * time.Millisecond,
		PeerTimeout:   time.Second,
		Services:      []string{"ftp"},
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := New(Deps{
		Logger:     discardLogger(),
		Jobs:       job.NewRunner(discardLogger()),
		Config:     h.config,
		Storage:    h.storage,
		Fencer:     h.fencer,
		Services:   h.services,
		Firewall:   h.firewall,
		Interfaces: h.interfaces,
		System:     h.system,
		Disks:      h.disks,
		Rebooter:   h.rebooter,
		Sentinel:   h.sentinel,
		Alerts:     h.alerts,
		Identity:   h.identity,
		Peer:       h.peer,
		Notifier:   h.notifier,
	}, o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.svc = svc

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Wait(ctx); err != nil {
			t.Errorf("background work did not finish: %v", err)
		}
	})
	return h
}

// peerDown makes every peer call fail.
func (h *harness) peerDown() {
	p := h.peer.EXPECT()
	p.Ping(gomock.Any()).Return(errPeerDown).AnyTimes()
	p.ImportedPools(gomock.Any()).Return(nil, errPeerDown).AnyTimes()
	p.SyncKeysToRemote(gomock.Any()).Return(errPeerDown).AnyTimes()
	p.ForceMaster(gomock.Any()).Return(errPeerDown).AnyTimes()
}

// fencedRunning answers fenced state queries from the status refresh.
func (h *harness) fencedRunning(v bool) {
	h.fencer.EXPECT().Running(gomock.Any()).Return(v, nil).AnyTimes()
}

func waitJob(t *testing.T, j *job.Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-j.Done():
	case <-ctx.Done():
		t.Fatalf("job %s (%s) did not finish", j.ID(), j.Method())
	}
}
