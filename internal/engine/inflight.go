package engine

import "sync"

// inflight tracks sessions with an outstanding request.
type inflight struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{sessions: make(map[string]struct{})}
}

// acquire marks the session busy. It returns false if it already was.
func (f *inflight) acquire(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.sessions[sessionID]; busy {
		return false
	}
	f.sessions[sessionID] = struct{}{}
	return true
}

func (f *inflight) release(sessionID string) {
	f.mu.Lock()
	delete(f.sessions, sessionID)
	f.mu.Unlock()
}

func (f *inflight) busy(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[sessionID]
	return ok
}
