package app

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSentinel struct {
	at      time.Time
	marked  bool
	err     error
	cleared bool
}

func (s *fakeSentinel) MarkedAt() (time.Time, bool, error) { return s.at, s.marked, s.err }

func (s *fakeSentinel) Clear() error {
	s.cleared = true
	s.marked = false
	return nil
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
	if _, err := New(DefaultConfig(), discardLogger(), nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil failover service")
	}

	cfg := DefaultConfig()
	cfg.NodeID = ""
	if _, err := New(cfg, discardLogger(), nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestApp_CheckSentinel(t *testing.T) {
	tests := []struct {
		name        string
		sentinel    *fakeSentinel
		wantCleared bool
	}{
		{name: "marked", sentinel: &fakeSentinel{at: time.Unix(1700000000, 0), marked: true}, wantCleared: true},
		{name: "clean", sentinel: &fakeSentinel{}},
		{name: "unreadable", sentinel: &fakeSentinel{marked: true, err: errors.New("short read")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &App{config: DefaultConfig(), logger: discardLogger(), sentinel: tt.sentinel}
			a.checkSentinel()
			if tt.sentinel.cleared != tt.wantCleared {
				t.Fatalf("expected cleared=%v, got %v", tt.wantCleared, tt.sentinel.cleared)
			}
		})
	}
}

func TestApp_CheckSentinel_Nil(t *testing.T) {
	a := &App{config: DefaultConfig(), logger: discardLogger()}
	a.checkSentinel()
}
