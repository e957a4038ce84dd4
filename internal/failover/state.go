package failover

import (
	"sync"
	"time"
)

// State is the lifecycle-scoped cache owned by a Service: HA license, the
// last computed status and disabled reasons, and the last transition outcome.
// Reset drops everything derived from the license.
type State struct {
	mu sync.Mutex

	licensed    bool
	licensedSet bool

	status   Status
	statusAt time.Time

	reasons    Reasons
	reasonsSet bool

	last *TransitionRecord
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Reset clears cached license, status and disabled reasons.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licensed, s.licensedSet = false, false
	s.status, s.statusAt = "", time.Time{}
	s.reasons, s.reasonsSet = nil, false
}

func (s *State) cachedLicense() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licensed, s.licensedSet
}

func (s *State) setLicense(v bool) {
	s.mu.Lock()
	s.licensed, s.licensedSet = v, true
	s.mu.Unlock()
}

func (s *State) cachedStatus(now time.Time, ttl time.Duration) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" || now.Sub(s.statusAt) > ttl {
		return "", false
	}
	return s.status, true
}

// swapStatus stores st and returns the previous value.
func (s *State) swapStatus(st Status, now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.status
	s.status, s.statusAt = st, now
	return prev
}

func (s *State) dropStatus() {
	s.mu.Lock()
	s.statusAt = time.Time{}
	s.mu.Unlock()
}

// swapReasons stores r and reports whether it differs from the previous set.
// The first computation always counts as a change.
func (s *State) swapReasons(r Reasons) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.reasonsSet || !s.reasons.Equal(r)
	s.reasons, s.reasonsSet = r, true
	return changed
}

// LastReasons returns the last computed disabled reasons.
func (s *State) LastReasons() (Reasons, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reasonsSet {
		return nil, false
	}
	out := make(Reasons, len(s.reasons))
	for r := range s.reasons {
		out.Add(r)
	}
	return out, true
}

func (s *State) recordTransition(rec TransitionRecord) {
	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()
}

// LastTransition returns the last terminal transition outcome.
func (s *State) LastTransition() (TransitionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return TransitionRecord{}, false
	}
	return *s.last, true
}
