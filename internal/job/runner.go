package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultRetention bounds how many finished jobs are kept for introspection.
const defaultRetention = 128

// Runner executes jobs and enforces mutual exclusion per lock name.
type Runner struct {
	logger Logger
	now    func() time.Time

	mu        sync.Mutex
	locks     map[string]chan struct{}
	jobs      map[string]*Job
	order     []string
	retention int
}

// NewRunner creates a job runner.
func NewRunner(logger Logger) *Runner {
	return &Runner{
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]chan struct{}),
		jobs:      make(map[string]*Job),
		retention: defaultRetention,
	}
}

// Submit registers a job and starts it in the background. The job stays
// WAITING until the named lock is free, then becomes RUNNING.
func (r *Runner) Submit(ctx context.Context, lock, method string, args []string, fn Func) *Job {
	j := &Job{
		id:      uuid.NewString(),
		method:  method,
		lock:    lock,
		args:    append([]string(nil), args...),
		state:   StateWaiting,
		created: r.now(),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	sem := r.lockLocked(lock)
	r.jobs[j.id] = j
	r.order = append(r.order, j.id)
	r.pruneLocked()
	r.mu.Unlock()

	go r.run(ctx, sem, j, fn)
	return j
}

func (r *Runner) run(ctx context.Context, sem chan struct{}, j *Job, fn Func) {
	sem <- struct{}{}
	defer func() { <-sem }()

	j.markRunning(r.now())
	r.logger.Debug("job started", "job_id", j.id, "method", j.method, "lock", j.lock)

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("job: panic: %v", p)
				r.logger.Error("job panicked", "job_id", j.id, "method", j.method, "panic", p)
			}
		}()
		result, err = fn(ctx, j)
	}()

	j.finish(r.now(), result, err)
	r.logger.Debug("job finished", "job_id", j.id, "method", j.method, "state", j.State())
}

// Get returns a job by id.
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Active returns unfinished jobs for the given methods, oldest first.
// With no methods, every unfinished job is returned.
func (r *Runner) Active(methods ...string) []*Job {
	return r.filter(func(j *Job) bool {
		return !j.State().Finished() && matchMethod(j.method, methods)
	})
}

// Running returns RUNNING jobs for the given methods, oldest first.
func (r *Runner) Running(methods ...string) []*Job {
	return r.filter(func(j *Job) bool {
		return j.State() == StateRunning && matchMethod(j.method, methods)
	})
}

// List returns snapshots of all retained jobs, newest first.
func (r *Runner) List() []Snapshot {
	jobs := r.filter(func(*Job) bool { return true })
	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Created.After(out[b].Created) })
	return out
}

func (r *Runner) filter(keep func(*Job) bool) []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0)
	for _, id := range r.order {
		if j := r.jobs[id]; j != nil && keep(j) {
			out = append(out, j)
		}
	}
	return out
}

func (r *Runner) lockLocked(name string) chan struct{} {
	sem, ok := r.locks[name]
	if !ok {
		sem = make(chan struct{}, 1)
		r.locks[name] = sem
	}
	return sem
}

// pruneLocked drops the oldest finished jobs above the retention limit.
// Caller must hold r.mu.
func (r *Runner) pruneLocked() {
	excess := len(r.order) - r.retention
	if excess <= 0 {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		j := r.jobs[id]
		if excess > 0 && j.State().Finished() {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

func matchMethod(method string, methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
