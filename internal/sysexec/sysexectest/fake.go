// Package sysexectest provides a scripted sysexec.Runner for tests.
package sysexectest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/i-melnichenko/ha-failover/internal/sysexec"
)

// Response is the canned outcome of one command line.
type Response struct {
	Output string
	// Code is reported as *sysexec.ExitError when non-zero.
	Code   int
	Stderr string
	Err    error
}

// Runner records every command and answers from a script keyed by the full
// command line. Unscripted commands succeed with empty output.
type Runner struct {
	mu       sync.Mutex
	script   map[string]Response
	prefixes map[string]Response
	calls    []string
}

// New returns an empty scripted runner.
func New() *Runner {
	return &Runner{script: make(map[string]Response), prefixes: make(map[string]Response)}
}

// On scripts the response for an exact command line.
func (r *Runner) On(line string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script[line] = resp
	return r
}

// OnPrefix scripts the response for every command line starting with prefix.
func (r *Runner) OnPrefix(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = resp
	return r
}

// Calls returns the command lines run so far.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Output implements sysexec.Runner.
func (r *Runner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	r.mu.Lock()
	r.calls = append(r.calls, line)
	resp, ok := r.script[line]
	if !ok {
		best := ""
		for prefix, p := range r.prefixes {
			if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
				best, resp = prefix, p
			}
		}
	}
	r.mu.Unlock()

	switch {
	case resp.Err != nil:
		return nil, fmt.Errorf("%s: %w", line, resp.Err)
	case resp.Code != 0:
		return []byte(resp.Output), &sysexec.ExitError{Command: line, Code: resp.Code, Stderr: resp.Stderr}
	default:
		return []byte(resp.Output), nil
	}
}

var _ sysexec.Runner = (*Runner)(nil)
