package failover

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
)

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func TestService_UpdateConfig_RequiresCriticalInterfaceToEnable(t *testing.T) {
	h := newHarness(t)
	h.config.cfg.Disabled = true
	h.interfaces.ifaces = []Interface{{Name: "eth1"}}

	_, err := h.svc.UpdateConfig(context.Background(), ConfigPatch{Disabled: boolPtr(false)})
	if !errors.Is(err, ErrNoCriticalInterfaces) {
		t.Fatalf("expected ErrNoCriticalInterfaces, got %v", err)
	}
	if !h.config.cfg.Disabled {
		t.Fatal("expected config to stay disabled")
	}
}

func TestService_UpdateConfig_RejectsNegativeTimeout(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UpdateConfig(context.Background(), ConfigPatch{Timeout: intPtr(-1)})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestService_UpdateConfig_ResolvesMasterNode(t *testing.T) {
	h := newHarness(t)
	h.identity.slot = NodeB

	cfg, err := h.svc.UpdateConfig(context.Background(), ConfigPatch{Master: boolPtr(true), Timeout: intPtr(10)})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if cfg.MasterNode != NodeB || cfg.Timeout != 10 {
		t.Fatalf("expected master B with timeout 10, got %+v", cfg)
	}
	if h.config.cfg != cfg {
		t.Fatalf("expected saved config %+v, got %+v", cfg, h.config.cfg)
	}
	ok, err := h.svc.ConfiguredMaster(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected configured master, got %v (err %v)", ok, err)
	}
}

func TestService_UpdateConfig_ManualNodeCannotPickMaster(t *testing.T) {
	h := newHarness(t)
	h.identity.slot = NodeManual

	_, err := h.svc.UpdateConfig(context.Background(), ConfigPatch{Master: boolPtr(true)})
	if !errors.Is(err, ErrManualNode) {
		t.Fatalf("expected ErrManualNode, got %v", err)
	}
}

func TestService_UpdateConfig_DisablingOnStandbyForcesPeerMaster(t *testing.T) {
	h := newHarness(t)
	h.identity.slot = NodeB
	h.peer.EXPECT().ForceMaster(gomock.Any()).Return(nil).Times(1)

	cfg, err := h.svc.UpdateConfig(context.Background(), ConfigPatch{Disabled: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if !cfg.Disabled || cfg.MasterNode != NodeA {
		t.Fatalf("expected disabled config with master A, got %+v", cfg)
	}
}

func TestService_Control(t *testing.T) {
	h := newHarness(t)

	changed, err := h.svc.Control(context.Background(), ControlDisable, boolPtr(false))
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if !changed || !h.config.cfg.Disabled || h.config.cfg.MasterNode != NodeB {
		t.Fatalf("expected disabled with master B, got changed=%v cfg=%+v", changed, h.config.cfg)
	}

	changed, err = h.svc.Control(context.Background(), ControlDisable, nil)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if changed {
		t.Fatal("expected no change when already disabled")
	}

	changed, err = h.svc.Control(context.Background(), ControlEnable, nil)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if !changed || h.config.cfg.Disabled || h.config.cfg.MasterNode != NodeA {
		t.Fatalf("expected enabled with master A, got changed=%v cfg=%+v", changed, h.config.cfg)
	}

	if _, err := h.svc.Control(context.Background(), ControlAction("TOGGLE"), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestService_ForceMaster_NoopWhenAlreadyMaster(t *testing.T) {
	h := newHarness(t)
	h.storage.imported = []string{"tank"}

	ok, err := h.svc.ForceMaster(context.Background())
	if err != nil {
		t.Fatalf("ForceMaster: %v", err)
	}
	if ok {
		t.Fatal("expected false when already MASTER")
	}
}

func TestService_ForceMaster_NoopWhenUnlicensed(t *testing.T) {
	h := newHarness(t)
	h.identity.licensed = false

	if ok, err := h.svc.ForceMaster(context.Background()); err != nil || ok {
		t.Fatalf("expected false, got %v (err %v)", ok, err)
	}
}

func TestService_ForceMaster_ReservesDisksWithoutCriticalInterfaces(t *testing.T) {
	h := newHarness(t)
	h.interfaces.ifaces = []Interface{{Name: "eth1"}}
	h.peer.EXPECT().ImportedPools(gomock.Any()).Return(nil, errPeerDown).Times(1)
	h.fencer.EXPECT().Start(gomock.Any(), true).Return(FencedAlreadyRunning, nil).Times(1)

	ok, err := h.svc.ForceMaster(context.Background())
	if err != nil {
		t.Fatalf("ForceMaster: %v", err)
	}
	if !ok {
		t.Fatal("expected true when fenced is already running")
	}
}

func TestService_ForceMaster_SubmitsForcedTakeover(t *testing.T) {
	h := newHarness(t)
	h.peerDown()
	h.fencedRunning(true)
	h.config.cfg.Disabled = true
	h.fencer.EXPECT().Stop(gomock.Any()).Return(nil).AnyTimes()
	h.fencer.EXPECT().Start(gomock.Any(), true).Return(FencedOK, nil).Times(1)

	ok, err := h.svc.ForceMaster(context.Background())
	if err != nil {
		t.Fatalf("ForceMaster: %v", err)
	}
	if !ok {
		t.Fatal("expected forced takeover to be submitted")
	}
	jobs := h.svc.Jobs().List()
	if len(jobs) != 1 || jobs[0].Method != MethodMaster {
		t.Fatalf("expected one master job, got %+v", jobs)
	}
	j, _ := h.svc.Jobs().Get(jobs[0].ID)
	waitJob(t, j)
	if j.Result() != ResultSuccess {
		t.Fatalf("expected SUCCESS, got %v (err %v)", j.Result(), j.Err())
	}
}

func TestService_ForceMaster_FalseWhenTakeoverIgnored(t *testing.T) {
	h := newHarness(t)
	h.peerDown()
	h.fencedRunning(true)

	release := make(chan struct{})
	started := make(chan struct{})
	h.fencer.EXPECT().Stop(gomock.Any()).Return(nil).AnyTimes()
	h.fencer.EXPECT().Start(gomock.Any(), false).DoAndReturn(func(context.Context, bool) (int, error) {
		close(started)
		<-release
		return FencedOK, nil
	}).Times(1)

	first, err := h.svc.Event(context.Background(), "eth0", EventMaster)
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	<-started

	ok, err := h.svc.ForceMaster(context.Background())
	if err != nil {
		t.Fatalf("ForceMaster: %v", err)
	}
	if ok {
		t.Fatal("expected false while another transition is running")
	}
	if n := len(h.svc.Jobs().List()); n != 1 {
		t.Fatalf("expected only the running transition job, got %d", n)
	}

	close(release)
	waitJob(t, first)
}

func TestService_BecomePassive_RestartsVIPService(t *testing.T) {
	h := newHarness(t)

	if err := h.svc.BecomePassive(context.Background()); err != nil {
		t.Fatalf("BecomePassive: %v", err)
	}
	if got := h.services.restarted(); len(got) != 1 || got[0] != "keepalived" {
		t.Fatalf("expected keepalived restarted, got %v", got)
	}
}
