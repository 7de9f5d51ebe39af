package agentsup

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corvidlabs/agentsup/internal/logging"
	"github.com/corvidlabs/agentsup/internal/metrics"
)

// ErrApprovalNotFound is returned by Decide when the key is unknown: already
// decided, already expired, or never registered.
var ErrApprovalNotFound = errors.New("agentsup: no such pending approval")

// ApprovalKey formats the composite key used throughout the mediator and the
// host protocol: "<agentId>:<requestId>" (spec §3, data model).
func ApprovalKey(agentID string, requestID ID) string {
	return fmt.Sprintf("%s:%s", agentID, requestID.Key())
}

type approvalEntry struct {
	slot  slot[json.RawMessage]
	timer *time.Timer
}

// ApprovalMediator maps a composite key to a single-shot decision slot and a
// deadline (spec §4.7). Decisions are opaque: whatever the host supplies and
// whatever the child expects is passed through unexamined.
type ApprovalMediator struct {
	mu      sync.Mutex
	entries map[string]*approvalEntry

	defaultTimeout  time.Duration
	defaultDecision json.RawMessage
}

// NewApprovalMediator constructs a mediator. defaultTimeout and
// defaultDecision are spec's configurable "default default" (60s, "deny").
func NewApprovalMediator(defaultTimeout time.Duration, defaultDecision json.RawMessage) *ApprovalMediator {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if len(defaultDecision) == 0 {
		defaultDecision = json.RawMessage(`"deny"`)
	}
	return &ApprovalMediator{
		entries:         make(map[string]*approvalEntry),
		defaultTimeout:  defaultTimeout,
		defaultDecision: defaultDecision,
	}
}

// Register opens a new approval entry keyed by key and returns the slot the
// caller should block on. If deadline is zero, the mediator's default
// timeout applies. The entry resolves itself with the default decision if
// Decide is never called before the deadline (spec: "expire(key) on
// deadline; decision defaults to deny").
func (m *ApprovalMediator) Register(key string, deadline time.Duration) slot[json.RawMessage] {
	if deadline <= 0 {
		deadline = m.defaultTimeout
	}
	sl := newSlot[json.RawMessage]()
	entry := &approvalEntry{slot: sl}

	m.mu.Lock()
	m.entries[key] = entry
	count := len(m.entries)
	m.mu.Unlock()
	metrics.PendingApprovals.Set(float64(count))
	logging.Logger.Debug().Str("key", key).Dur("deadline", deadline).Msg("approval registered")

	entry.timer = time.AfterFunc(deadline, func() { m.expire(key) })
	return sl
}

// Decide resolves the entry at key with decision. Returns ErrApprovalNotFound
// if the key was already resolved (decided or expired) or never registered;
// a second Decide for the same key always returns ErrApprovalNotFound.
func (m *ApprovalMediator) Decide(key string, decision json.RawMessage) error {
	entry, ok := m.takeEntry(key)
	if !ok {
		logging.Logger.Warn().Str("key", key).Msg("decide on unknown or already-resolved approval")
		return ErrApprovalNotFound
	}
	entry.timer.Stop()
	entry.slot.resolve(decision)
	logging.Logger.Debug().Str("key", key).Msg("approval decided")
	return nil
}

// expire resolves key with the default decision if it is still pending.
func (m *ApprovalMediator) expire(key string) {
	entry, ok := m.takeEntry(key)
	if !ok {
		return
	}
	logging.Logger.Warn().Str("key", key).Msg("approval timed out, applying default decision")
	entry.slot.resolve(m.defaultDecision)
}

func (m *ApprovalMediator) takeEntry(key string) (*approvalEntry, bool) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	count := len(m.entries)
	m.mu.Unlock()
	metrics.PendingApprovals.Set(float64(count))
	return entry, ok
}

// ListPending returns a snapshot of currently outstanding approval keys, for
// the list_pending_approvals diagnostic (spec §6).
func (m *ApprovalMediator) ListPending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CancelForAgent resolves every pending entry belonging to agentID with the
// default decision, used when a child session tears down (crash, kill,
// shutdown) so no approval await is left orphaned (spec §4.5 crash semantics).
func (m *ApprovalMediator) CancelForAgent(agentID string) {
	prefix := agentID + ":"
	m.mu.Lock()
	var toExpire []*approvalEntry
	for k, entry := range m.entries {
		if strings.HasPrefix(k, prefix) {
			toExpire = append(toExpire, entry)
			delete(m.entries, k)
		}
	}
	count := len(m.entries)
	m.mu.Unlock()
	metrics.PendingApprovals.Set(float64(count))
	if len(toExpire) > 0 {
		logging.ForAgent(agentID).Debug().Int("count", len(toExpire)).Msg("cancelling pending approvals for agent")
	}

	for _, entry := range toExpire {
		entry.timer.Stop()
		entry.slot.resolve(m.defaultDecision)
	}
}
