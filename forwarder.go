package agentsup

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/corvidlabs/agentsup/internal/metrics"
)

// ErrForwarderAlreadySet is returned by Forwarder.Set on any call after the
// first (spec §4.8: "subsequent sets are rejected").
var ErrForwarderAlreadySet = errors.New("agentsup: upstream forwarder already set")

// UpstreamSink is the host endpoint's side of the forwarder: whatever can
// accept an outbound notification. hostapi's framed writer implements this.
type UpstreamSink interface {
	SendNotification(Notification) error
}

// ChildEventLoggerID is the stable logger identifier stamped on every
// forwarded child notification, distinguishing agent events from other
// diagnostic streams (spec §4.8).
const ChildEventLoggerID = "agentsup.child_event"

// ChildNotificationPayload is the payload wrapping a forwarded child
// notification (spec §6, "Notification wrapping").
type ChildNotificationPayload struct {
	AgentID string          `json:"agentId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ApprovalRequestPayload is the payload wrapping a forwarded approval
// request (spec §6).
type ApprovalRequestPayload struct {
	Kind      string          `json:"kind"`
	AgentID   string          `json:"agentId"`
	RequestID ID              `json:"requestId"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	Key       string          `json:"key"`
}

// Forwarder is the process-wide sink read loops use to emit notifications
// to the host endpoint (spec §4.8). It holds at most one handle, set
// exactly once at startup.
type Forwarder struct {
	mu      sync.RWMutex
	sink    UpstreamSink
	set     bool
	dropped atomic.Uint64
}

// NewForwarder constructs an unset forwarder.
func NewForwarder() *Forwarder {
	return &Forwarder{}
}

// Set installs the host endpoint handle. A second call returns
// ErrForwarderAlreadySet and leaves the existing handle untouched.
func (f *Forwarder) Set(sink UpstreamSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return ErrForwarderAlreadySet
	}
	f.sink = sink
	f.set = true
	return nil
}

// ForwardChildEvent wraps and emits a notification originating from a
// child. If no handle is set yet, the event is dropped and the drop
// counter incremented (observability, not error).
func (f *Forwarder) ForwardChildEvent(agentID, method string, params json.RawMessage) {
	payload, err := json.Marshal(ChildNotificationPayload{AgentID: agentID, Method: method, Params: params})
	if err != nil {
		f.dropped.Add(1)
		return
	}
	f.emit(ChildEventLoggerID, payload)
}

// ForwardApprovalRequest wraps and emits a child-originated approval
// request. Dropped the same way as ForwardChildEvent if unset.
func (f *Forwarder) ForwardApprovalRequest(agentID string, requestID ID, method string, params json.RawMessage) {
	key := ApprovalKey(agentID, requestID)
	payload, err := json.Marshal(ApprovalRequestPayload{
		Kind:      "approval_request",
		AgentID:   agentID,
		RequestID: requestID,
		Method:    method,
		Params:    params,
		Key:       key,
	})
	if err != nil {
		f.dropped.Add(1)
		return
	}
	f.emit(ChildEventLoggerID, payload)
}

func (f *Forwarder) emit(loggerID string, payload json.RawMessage) {
	f.mu.RLock()
	sink := f.sink
	set := f.set
	f.mu.RUnlock()

	if !set {
		f.dropped.Add(1)
		metrics.NotificationsDroppedTotal.Inc()
		return
	}

	notif := Notification{JSONRPC: JSONRPCVersion, Method: loggerID, Params: payload}
	if err := sink.SendNotification(notif); err != nil {
		f.dropped.Add(1)
		metrics.NotificationsDroppedTotal.Inc()
	}
}

// DroppedCount reports how many notifications were dropped because no
// upstream handle was set, or because the send itself failed.
func (f *Forwarder) DroppedCount() uint64 {
	return f.dropped.Load()
}
