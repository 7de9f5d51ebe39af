package agentsup

import (
	"encoding/json"
	"fmt"
)

// Phase identifies where in a call's lifecycle an error occurred, echoed in
// every host-visible error's data payload (spec §7).
type Phase string

const (
	PhaseSpawn     Phase = "spawn"
	PhaseHandshake Phase = "handshake"
	PhaseCall      Phase = "call"
	PhaseNotify    Phase = "notify"
	PhaseApproval  Phase = "approval"
	PhaseShutdown  Phase = "shutdown"
)

// RPCError wraps a JSON-RPC error response returned verbatim by a child.
// It implements error, errors.Is, and errors.As.
type RPCError struct {
	err *RPCErrorObject
}

// NewRPCError wraps a JSON-RPC error object.
func NewRPCError(err *RPCErrorObject) *RPCError {
	return &RPCError{err: err}
}

// Error implements the error interface. Data is deliberately excluded from
// the string — it is child-controlled and may contain sensitive content;
// use Data() to access it explicitly.
func (e *RPCError) Error() string {
	if e.err == nil {
		return "rpc error: <nil>"
	}
	return fmt.Sprintf("rpc error: code=%d message=%q", e.err.Code, e.err.Message)
}

// RPCErrorObject returns the underlying JSON-RPC error.
func (e *RPCError) RPCErrorObject() *RPCErrorObject { return e.err }

// Code returns the JSON-RPC error code.
func (e *RPCError) Code() int {
	if e.err == nil {
		return 0
	}
	return e.err.Code
}

// Data returns the raw JSON-RPC error data, if any.
func (e *RPCError) Data() json.RawMessage {
	if e.err == nil {
		return nil
	}
	return e.err.Data
}

// Is implements errors.Is by comparing error codes.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	if e.err == nil || t.err == nil {
		return e.err == t.err
	}
	return e.err.Code == t.err.Code
}

// TransportError wraps framing/IO failures: fatal to the affected stream,
// triggers drain and session removal (spec §7, "Transport").
type TransportError struct {
	msg   string
	cause error
}

func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{msg: msg, cause: cause}
}

func (e *TransportError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("transport error: %s", e.msg)
}

func (e *TransportError) Unwrap() error { return e.cause }

// TimeoutError represents a pending call or approval that was not completed
// by its deadline (spec §7, "Timeout").
type TimeoutError struct {
	msg string
}

func NewTimeoutError(msg string) *TimeoutError {
	return &TimeoutError{msg: msg}
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %s", e.msg) }

// Is matches any TimeoutError; all timeouts are semantically equivalent.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// ClosedError signals that a call could not be issued, or was resolved,
// because the session was torn down: EOF, read error, kill, or shutdown.
// Reason distinguishes the cause without callers needing three error types.
type ClosedError struct {
	// "session closed" (EOF or read error) | "killed" (kill, which supervisor
	// shutdown also uses). No distinct shutdown or transport reason is produced.
	Reason string
}

func NewClosedError(reason string) *ClosedError {
	return &ClosedError{Reason: reason}
}

func (e *ClosedError) Error() string { return e.Reason }

func (e *ClosedError) Is(target error) bool {
	_, ok := target.(*ClosedError)
	return ok
}

// LifecycleError covers agent bookkeeping failures: no such agent, duplicate
// agent id, or spawn failure (binary not found, permission denied).
type LifecycleError struct {
	msg   string
	cause error
}

func NewLifecycleError(msg string, cause error) *LifecycleError {
	return &LifecycleError{msg: msg, cause: cause}
}

func (e *LifecycleError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *LifecycleError) Unwrap() error { return e.cause }

func (e *LifecycleError) Is(target error) bool {
	_, ok := target.(*LifecycleError)
	return ok
}

// ErrNoSuchAgent and ErrDuplicateAgent are the two stable LifecycleError
// instances tests and callers can match on with errors.Is.
var (
	ErrNoSuchAgent    = NewLifecycleError("no such agent", nil)
	ErrDuplicateAgent = NewLifecycleError("duplicate agent id", nil)
)

// HostError is the uniform shape every host tool error carries (spec §7):
// a code, a human-readable message, and a data payload naming the agent,
// method, and phase involved. Sensitive content (raw child payloads) is
// never included.
type HostError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		AgentID string `json:"agentId,omitempty"`
		Method  string `json:"method,omitempty"`
		Phase   Phase  `json:"phase"`
	} `json:"data"`
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s (phase=%s, code=%d)", e.Message, e.Data.Phase, e.Code)
}

// NewHostError builds a HostError from an internal error, classifying it by
// type into a JSON-RPC-ish code and attaching agent/method/phase context.
func NewHostError(err error, agentID, method string, phase Phase) *HostError {
	he := &HostError{Message: err.Error()}
	he.Data.AgentID = agentID
	he.Data.Method = method
	he.Data.Phase = phase

	switch e := err.(type) {
	case *RPCError:
		he.Code = e.Code()
		he.Message = e.Error()
	case *TimeoutError:
		he.Code = ErrCodeInternalError
	case *ClosedError:
		he.Code = ErrCodeInternalError
	case *LifecycleError:
		he.Code = ErrCodeInvalidRequest
	default:
		he.Code = ErrCodeInternalError
	}
	return he
}
