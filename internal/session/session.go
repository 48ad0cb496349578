package session

import (
	"sync"

	"newsintel/internal/domain"
)

// Session is the explicit per-user context threaded through the pipeline.
// It replaces ambient globals: current user, the run in progress, and the
// cooldown gate all live here and nowhere else.
type Session struct {
	User domain.User
	Gate *Gate

	mu  sync.RWMutex
	run *domain.Run
}

// New constructs a fresh session for one user with its own cooldown gate.
func New(user domain.User, gate *Gate) *Session {
	return &Session{User: user, Gate: gate}
}

// SetRun replaces the session's active run. Starting a new run conceptually
// destroys the previous one.
func (s *Session) SetRun(run *domain.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = run
}

// Run returns the active run, or nil if none has started.
func (s *Session) Run() *domain.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}
