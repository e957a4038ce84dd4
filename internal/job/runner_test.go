package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s did not finish", j.ID())
	}
}

func TestRunner_Submit_RecordsSuccess(t *testing.T) {
	r := NewRunner(slog.Default())

	j := r.Submit(context.Background(), "lock", "op", []string{"a"}, func(_ context.Context, j *Job) (any, error) {
		j.SetProgress("WORKING")
		return "done", nil
	})
	waitDone(t, j)

	if got := j.State(); got != StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", got)
	}
	if got := j.Result(); got != "done" {
		t.Fatalf("expected result done, got %v", got)
	}
	if got := j.Progress(); got != "WORKING" {
		t.Fatalf("expected progress WORKING, got %q", got)
	}
}

func TestRunner_Submit_FailedAndAborted(t *testing.T) {
	r := NewRunner(slog.Default())
	boom := errors.New("boom")

	failed := r.Submit(context.Background(), "a", "op", nil, func(context.Context, *Job) (any, error) {
		return nil, boom
	})
	aborted := r.Submit(context.Background(), "b", "op", nil, func(context.Context, *Job) (any, error) {
		return nil, fmt.Errorf("not now: %w", ErrAborted)
	})
	waitDone(t, failed)
	waitDone(t, aborted)

	if failed.State() != StateFailed || !errors.Is(failed.Err(), boom) {
		t.Fatalf("unexpected failed job: state=%s err=%v", failed.State(), failed.Err())
	}
	if aborted.State() != StateAborted {
		t.Fatalf("expected ABORTED, got %s", aborted.State())
	}
}

func TestRunner_SameLockIsExclusive(t *testing.T) {
	r := NewRunner(slog.Default())

	var inside, maxInside int32
	release := make(chan struct{})
	body := func(context.Context, *Job) (any, error) {
		n := atomic.AddInt32(&inside, 1)
		for {
			cur := atomic.LoadInt32(&maxInside)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inside, -1)
		return nil, nil
	}

	first := r.Submit(context.Background(), "vrrp_master", "m", nil, body)
	second := r.Submit(context.Background(), "vrrp_master", "m", nil, body)

	deadline := time.Now().Add(time.Second)
	for len(r.Running("m")) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(r.Running("m")); got != 1 {
		t.Fatalf("expected exactly one running job, got %d", got)
	}
	if got := len(r.Active("m")); got != 2 {
		t.Fatalf("expected two active jobs, got %d", got)
	}

	close(release)
	waitDone(t, first)
	waitDone(t, second)

	if got := atomic.LoadInt32(&maxInside); got != 1 {
		t.Fatalf("expected at most one job inside the lock, got %d", got)
	}
}

func TestRunner_DifferentLocksRunConcurrently(t *testing.T) {
	r := NewRunner(slog.Default())

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	body := func(context.Context, *Job) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}

	a := r.Submit(context.Background(), "vrrp_master", "m", nil, body)
	b := r.Submit(context.Background(), "vrrp_backup", "b", nil, body)

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("jobs with different locks did not start concurrently")
		}
	}
	close(release)
	waitDone(t, a)
	waitDone(t, b)
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	r := NewRunner(slog.Default())
	j := r.Submit(context.Background(), "l", "op", nil, func(context.Context, *Job) (any, error) {
		panic("bad")
	})
	waitDone(t, j)
	if j.State() != StateFailed {
		t.Fatalf("expected FAILED after panic, got %s", j.State())
	}
}

func TestRunner_PrunesFinishedJobs(t *testing.T) {
	r := NewRunner(slog.Default())
	r.retention = 2

	for i := 0; i < 4; i++ {
		j := r.Submit(context.Background(), "l", "op", nil, func(context.Context, *Job) (any, error) { return nil, nil })
		waitDone(t, j)
	}

	if got := len(r.List()); got > 3 {
		t.Fatalf("expected pruning to bound retained jobs, got %d", got)
	}
}
