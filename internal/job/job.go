// Package job runs long operations as jobs serialized by named locks.
//
// A job holding lock "x" excludes every other job that asks for "x"; jobs with
// different lock names run concurrently. Callers observe a job through its
// state, its progress description and, once finished, its result or error.
package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the lifecycle state of a job.
type State string

// Job lifecycle states.
const (
	StateWaiting State = "WAITING"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
	StateAborted State = "ABORTED"
)

// Finished reports whether s is a terminal state.
func (s State) Finished() bool {
	switch s {
	case StateSuccess, StateFailed, StateAborted:
		return true
	default:
		return false
	}
}

// ErrAborted is returned by job functions that decided not to proceed.
// The runner records such jobs as ABORTED instead of FAILED.
var ErrAborted = errors.New("job: aborted")

// Func is the body of a job.
type Func func(ctx context.Context, j *Job) (any, error)

// Job is a single execution of a Func under a named lock.
type Job struct {
	id     string
	method string
	lock   string
	args   []string

	mu       sync.Mutex
	state    State
	progress string
	result   any
	err      error
	created  time.Time
	started  time.Time
	finished time.Time

	done chan struct{}
}

// Snapshot is a point-in-time copy of a job for introspection APIs.
type Snapshot struct {
	ID       string
	Method   string
	Lock     string
	Args     []string
	State    State
	Progress string
	Result   any
	Error    string
	Created  time.Time
	Started  time.Time
	Finished time.Time
}

// ID returns the unique job id.
func (j *Job) ID() string { return j.id }

// Method returns the name of the operation the job runs.
func (j *Job) Method() string { return j.method }

// Lock returns the lock name the job holds while running.
func (j *Job) Lock() string { return j.lock }

// Args returns a copy of the job arguments.
func (j *Job) Args() []string { return append([]string(nil), j.args...) }

// SetProgress records a human-readable description of the current step.
func (j *Job) SetProgress(description string) {
	j.mu.Lock()
	j.progress = description
	j.mu.Unlock()
}

// Progress returns the last progress description.
func (j *Job) Progress() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Result returns the value produced by a successful job.
func (j *Job) Result() any {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Err returns the error of a failed or aborted job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx is done and returns the job error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := Snapshot{
		ID:       j.id,
		Method:   j.method,
		Lock:     j.lock,
		Args:     append([]string(nil), j.args...),
		State:    j.state,
		Progress: j.progress,
		Result:   j.result,
		Created:  j.created,
		Started:  j.started,
		Finished: j.finished,
	}
	if j.err != nil {
		out.Error = j.err.Error()
	}
	return out
}

func (j *Job) markRunning(now time.Time) {
	j.mu.Lock()
	j.state = StateRunning
	j.started = now
	j.mu.Unlock()
}

func (j *Job) finish(now time.Time, result any, err error) {
	j.mu.Lock()
	switch {
	case err == nil:
		j.state = StateSuccess
		j.result = result
	case errors.Is(err, ErrAborted):
		j.state = StateAborted
		j.err = err
	default:
		j.state = StateFailed
		j.err = err
	}
	j.finished = now
	j.mu.Unlock()
	close(j.done)
}
