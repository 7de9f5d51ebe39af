package agentsup

import (
	"sort"
	"sync"

	"github.com/corvidlabs/agentsup/internal/logging"
)

// Registry is the concurrent agentId -> *ChildSession map (spec §4.6). It is
// read-heavy: call_on/notify_on look a session up on every invocation, while
// spawn/kill are comparatively rare, so lookups take the read lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*ChildSession
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*ChildSession)}
}

// Insert publishes sess under its agent id. Returns ErrDuplicateAgent if the
// id is already present; the registry only ever exposes a session after its
// child has completed the initialization handshake (spec §4.4/§4.6), so a
// collision here means the caller reused an id still in use.
func (r *Registry) Insert(sess *ChildSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sess.AgentID]; exists {
		logging.ForAgent(sess.AgentID).Error().Msg("registry insert rejected: agent id already registered")
		return ErrDuplicateAgent
	}
	r.sessions[sess.AgentID] = sess
	logging.ForAgent(sess.AgentID).Debug().Msg("registry insert")
	return nil
}

// Lookup returns the session for agentID, or ok=false if none is registered.
func (r *Registry) Lookup(agentID string) (*ChildSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[agentID]
	return sess, ok
}

// Remove deletes agentID from the registry if present. It is idempotent:
// called both from an explicit kill and from a session's own onClosed
// teardown callback, whichever happens first.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, agentID)
	logging.ForAgent(agentID).Debug().Msg("registry remove")
}

// List returns a sorted snapshot of every live agent id (spec §6, "list").
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of live sessions, for tests and the
// supervisor_live_agents gauge.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns every live session, for supervisor-wide shutdown.
func (r *Registry) Snapshot() []*ChildSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ChildSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}
