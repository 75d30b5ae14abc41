package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may sit untouched before the
// sweep removes it.
const DefaultIdleTimeout = 24 * time.Hour

// Registry holds all live sessions. Idle sessions are removed on demand by
// Sweep rather than by a background timer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxHistory int
	persistDir string
	logger     *slog.Logger
}

// NewRegistry creates an empty session registry. maxHistory and persistDir
// are applied to every session it creates.
func NewRegistry(maxHistory int, persistDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
		persistDir: persistDir,
		logger:     logger.With("component", "session.registry"),
	}
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// An empty ID creates a session under a fresh UUID. The second return value
// is true when a new session was created.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.Touch()
		return s, false
	}

	s := New(id, r.maxHistory, r.persistDir)
	r.sessions[id] = s

	r.logger.Info("session created", "session_id", id, "total", len(r.sessions))
	return s, true
}

// Get returns the session with the given ID, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Remove deletes a session and releases its resources. Returns false when
// no such session exists.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	total := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}

	s.Close()
	r.logger.Info("session removed", "session_id", id, "total", total)
	return true
}

// Sweep removes every session idle for longer than maxIdle and returns how
// many were removed. Zero maxIdle uses DefaultIdleTimeout.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = DefaultIdleTimeout
	}
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	total := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}

	if len(expired) > 0 {
		r.logger.Info("swept idle sessions",
			"removed", len(expired),
			"max_idle", maxIdle,
			"total", total,
		)
	}
	return len(expired)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the IDs of all live sessions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}

// Close removes every session, releasing all resources.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
