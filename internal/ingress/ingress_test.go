package ingress

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/job"
)

func TestParseNotifyLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Notification
		ok      bool
		wantErr bool
	}{
		{name: "master", line: `INSTANCE "eth0_v4" MASTER 100`, want: Notification{Interface: "eth0", State: failover.VRRPMaster, Kind: failover.EventMaster}, ok: true},
		{name: "backup", line: `INSTANCE "br0_v6" BACKUP 50`, want: Notification{Interface: "br0", State: failover.VRRPBackup, Kind: failover.EventBackup}, ok: true},
		{name: "no suffix", line: `INSTANCE eth1 MASTER 100`, want: Notification{Interface: "eth1", State: failover.VRRPMaster, Kind: failover.EventMaster}, ok: true},
		{name: "underscore in interface", line: `INSTANCE "br_lan_v4" MASTER 100`, want: Notification{Interface: "br_lan", State: failover.VRRPMaster, Kind: failover.EventMaster}, ok: true},
		{name: "fault not dispatched", line: `INSTANCE "eth0_v4" FAULT 0`, want: Notification{Interface: "eth0", State: failover.VRRPFault}},
		{name: "stop not dispatched", line: `INSTANCE "eth0_v4" STOP 0`, want: Notification{Interface: "eth0", State: failover.VRRPStop}},
		{name: "too short", line: `INSTANCE`, wantErr: true},
		{name: "empty interface", line: `INSTANCE "_v4" MASTER 100`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseNotifyLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNotifyLine: %v", err)
			}
			if ok != tt.ok || got != tt.want {
				t.Fatalf("expected %+v ok=%v, got %+v ok=%v", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestTracker_VRRPStatesReturnsCopy(t *testing.T) {
	tr := NewTracker(map[string]failover.VRRPState{"eth0": failover.VRRPBackup})
	tr.Set("eth0", failover.VRRPMaster)
	tr.Set("eth1", failover.VRRPBackup)

	got, err := tr.VRRPStates(context.Background())
	if err != nil {
		t.Fatalf("VRRPStates: %v", err)
	}
	if got["eth0"] != failover.VRRPMaster || got["eth1"] != failover.VRRPBackup {
		t.Fatalf("unexpected states %v", got)
	}
	got["eth0"] = failover.VRRPBackup
	again, _ := tr.VRRPStates(context.Background())
	if again["eth0"] != failover.VRRPMaster {
		t.Fatal("expected tracker state to be isolated from callers")
	}
}

type call struct {
	ifname string
	kind   failover.EventKind
}

type fakeHandler struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeHandler) Event(_ context.Context, ifname string, kind failover.EventKind) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{ifname: ifname, kind: kind})
	if f.err != nil {
		return nil, f.err
	}
	return job.NewRunner(discardLogger()).Submit(context.Background(), "", "test", nil, func(context.Context, *job.Job) (any, error) {
		return nil, nil
	}), nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	fields []map[string]any
}

func (f *fakeNotifier) Send(topic, action string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == "failover.vrrp_event" && action == "CHANGED" {
		f.fields = append(f.fields, fields)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReader_ConsumeDispatchesMasterAndBackup(t *testing.T) {
	handler := &fakeHandler{}
	notifier := &fakeNotifier{}
	tracker := NewTracker(nil)
	r := NewReader("", handler, tracker, notifier, discardLogger())

	input := strings.Join([]string{
		`INSTANCE "eth0_v4" MASTER 100`,
		`INSTANCE "eth0_v4" FAULT 0`,
		`garbage`,
		`INSTANCE "eth1_v4" BACKUP 50`,
	}, "\n")
	if err := r.Consume(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	want := []call{{"eth0", failover.EventMaster}, {"eth1", failover.EventBackup}}
	if len(handler.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, handler.calls)
	}
	for i := range want {
		if handler.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, handler.calls)
		}
	}
	if len(notifier.fields) != 2 || notifier.fields[0]["ifname"] != "eth0" || notifier.fields[0]["event"] != "MASTER" {
		t.Fatalf("unexpected notifications %v", notifier.fields)
	}
	states, _ := tracker.VRRPStates(context.Background())
	if states["eth0"] != failover.VRRPFault || states["eth1"] != failover.VRRPBackup {
		t.Fatalf("unexpected tracked states %v", states)
	}
}

func TestReader_FaultReplacesMasterRole(t *testing.T) {
	handler := &fakeHandler{}
	tracker := NewTracker(map[string]failover.VRRPState{"eth2": failover.VRRPBackup})
	r := NewReader("", handler, tracker, &fakeNotifier{}, discardLogger())

	input := "INSTANCE \"eth1_v4\" MASTER 100\nINSTANCE \"eth1_v4\" FAULT 0\n"
	if err := r.Consume(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	states, _ := tracker.VRRPStates(context.Background())
	if states["eth1"] != failover.VRRPFault {
		t.Fatalf("expected eth1 FAULT after the fault notification, got %q", states["eth1"])
	}
	if len(handler.calls) != 1 || handler.calls[0].kind != failover.EventMaster {
		t.Fatalf("expected only the MASTER event dispatched, got %v", handler.calls)
	}
}

func TestReader_ConsumeKeepsGoingWhenEventIgnored(t *testing.T) {
	handler := &fakeHandler{err: failover.ErrIgnoreEvent}
	r := NewReader("", handler, nil, &fakeNotifier{}, discardLogger())

	input := "INSTANCE \"eth0_v4\" MASTER 100\nINSTANCE \"eth0_v4\" BACKUP 100\n"
	if err := r.Consume(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(handler.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(handler.calls))
	}
}

func TestReader_ConsumeStopsWhenContextDone(t *testing.T) {
	handler := &fakeHandler{}
	r := NewReader("", handler, nil, &fakeNotifier{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Consume(ctx, strings.NewReader("INSTANCE \"eth0_v4\" MASTER 100\n")); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(handler.calls) != 0 {
		t.Fatalf("expected no calls after cancel, got %d", len(handler.calls))
	}
}
