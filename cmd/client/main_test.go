package main

import (
	"strings"
	"testing"
	"time"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/notify"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		in      string
		want    failover.EventKind
		wantErr bool
	}{
		{in: "MASTER", want: failover.EventMaster},
		{in: "backup", want: failover.EventBackup},
		{in: "ForceTakeover", want: failover.EventForceTakeover},
		{in: "FAULT", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseEventKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("expected %s for %q, got %s (err %v)", tt.want, tt.in, got, err)
		}
	}
}

func TestConfigUpdate_BuildsPatchFromChangedFlags(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"config", "update"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := cmd.ParseFlags([]string{"--disabled=false", "--timeout-seconds=30"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	disabled, _ := cmd.Flags().GetString("disabled")
	timeout, _ := cmd.Flags().GetInt("timeout-seconds")

	patch, err := buildPatch(cmd, disabled, "", timeout)
	if err != nil {
		t.Fatalf("buildPatch: %v", err)
	}
	if patch.Disabled == nil || *patch.Disabled {
		t.Fatalf("expected disabled=false, got %v", patch.Disabled)
	}
	if patch.Master != nil {
		t.Fatalf("expected master unset, got %v", *patch.Master)
	}
	if patch.Timeout == nil || *patch.Timeout != 30 {
		t.Fatalf("expected timeout 30, got %v", patch.Timeout)
	}
}

func TestConfigUpdate_RequiresAField(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"config", "update"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := buildPatch(cmd, "", "", 0); err == nil {
		t.Fatal("expected error when no field is set")
	}
}

func TestRootOptions_Addrs(t *testing.T) {
	o := rootOptions{addr: " a:1 ,, b:2 "}
	got := o.addrs()
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("expected [a:1 b:2], got %v", got)
	}
}

func TestWatchModel_KeepsRecentEvents(t *testing.T) {
	ch := make(chan eventMsg)
	m := newWatchModel(nil, ch, time.Second)
	for i := range watchEventHistory + 3 {
		next, _ := m.Update(eventMsg{addr: "a", event: notify.Event{Topic: "failover.status", Action: "CHANGED", Fields: map[string]any{"n": i}}})
		m = next.(watchModel)
	}
	if len(m.events) != watchEventHistory {
		t.Fatalf("expected %d events, got %d", watchEventHistory, len(m.events))
	}
	if m.events[len(m.events)-1].event.Fields["n"] != watchEventHistory+2 {
		t.Fatalf("expected newest event last, got %v", m.events[len(m.events)-1].event.Fields)
	}
}

func TestWatchModel_View(t *testing.T) {
	m := newWatchModel(nil, nil, time.Second)
	m.rows = []watchRow{
		{addr: "10.0.0.1:7070", status: "MASTER"},
		{addr: "10.0.0.2:7070", status: "BACKUP", reasons: []string{"NO_PONG"}},
		{addr: "10.0.0.3:7070", err: "connection refused"},
	}
	view := m.View()
	for _, want := range []string{"MASTER", "NO_PONG", "DOWN", "connection refused", "(waiting)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abcdefgh", 5); got != "ab..." {
		t.Fatalf("expected ab..., got %q", got)
	}
	if got := shorten("abc", 5); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
