package sweeper

import (
	"sync"
	"time"
)

// State guards against overlapping runs and remembers the last outcome. It is
// shared by the scheduler and the operator endpoints so both see one guard.
type State struct {
	mu             sync.Mutex
	running        bool
	runs           int64
	lastStartedAt  time.Time
	lastFinishedAt time.Time
	lastSummary    *RunSummary
}

// Snapshot is a copy of State safe to hand to callers.
type Snapshot struct {
	Running        bool        `json:"running"`
	Runs           int64       `json:"runs"`
	LastStartedAt  *time.Time  `json:"lastStartedAt,omitempty"`
	LastFinishedAt *time.Time  `json:"lastFinishedAt,omitempty"`
	LastSummary    *RunSummary `json:"lastSummary,omitempty"`
}

// NewState returns an idle state.
func NewState() *State {
	return &State{}
}

// TryStart marks a run as active. It returns false when one already is.
func (s *State) TryStart(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.runs++
	s.lastStartedAt = now
	return true
}

// Finish clears the running flag and stores the summary when one is given.
func (s *State) Finish(now time.Time, summary *RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastFinishedAt = now
	if summary != nil {
		s.lastSummary = summary
	}
}

// Running reports whether a run is active.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Running:     s.running,
		Runs:        s.runs,
		LastSummary: s.lastSummary,
	}
	if !s.lastStartedAt.IsZero() {
		started := s.lastStartedAt
		snap.LastStartedAt = &started
	}
	if !s.lastFinishedAt.IsZero() {
		finished := s.lastFinishedAt
		snap.LastFinishedAt = &finished
	}
	return snap
}

// Reset returns the state to idle and forgets history.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs = 0
	s.lastStartedAt = time.Time{}
	s.lastFinishedAt = time.Time{}
	s.lastSummary = nil
}
