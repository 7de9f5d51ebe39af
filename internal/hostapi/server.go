// Package hostapi implements the host-facing control plane: a framed
// JSON-RPC 2.0 endpoint over stdio exposing the supervisor's spawn/list/
// kill/call_on/notify_on/list_pending_approvals/decide_approval surface,
// and the upstream sink the supervisor forwards child events and approval
// requests through.
package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/corvidlabs/agentsup"
	"github.com/corvidlabs/agentsup/internal/logging"
)

// Server is the host-facing endpoint. It owns the single writer half of the
// host connection, shared between method responses and forwarded
// notifications, so both paths serialize through one frame writer exactly
// like a ChildSession serializes writes to its child.
type Server struct {
	sup *agentsup.Supervisor

	writeMu sync.Mutex
	writer  *agentsup.FrameWriter
}

// NewServer wires sup to a framed reader/writer pair and installs itself as
// the supervisor's upstream forwarder sink.
func NewServer(sup *agentsup.Supervisor, writer *agentsup.FrameWriter) (*Server, error) {
	s := &Server{sup: sup, writer: writer}
	if err := sup.Forwarder().Set(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SendNotification implements agentsup.UpstreamSink.
func (s *Server) SendNotification(notif agentsup.Notification) error {
	body, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteFrame(body)
}

// Serve reads framed requests from reader until it returns an error (EOF on
// shutdown), dispatching each to the matching supervisor method and writing
// a framed response.
func (s *Server) Serve(ctx context.Context, reader *agentsup.FrameReader) error {
	for {
		body, err := reader.ReadFrame()
		if err != nil {
			return err
		}

		kind, cerr := agentsup.Classify(body)
		if cerr != nil || kind != agentsup.KindRequest {
			// The host endpoint only ever receives requests; anything else
			// is a protocol error and is dropped.
			logging.Warnf("hostapi: dropping non-request frame: %s", body)
			continue
		}

		var req agentsup.Request
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}

		go s.handle(ctx, req)
	}
}

func (s *Server) handle(ctx context.Context, req agentsup.Request) {
	result, err := s.dispatch(ctx, req.Method, req.Params)

	resp := agentsup.Response{ID: req.ID}
	if err != nil {
		resp.Error = toRPCError(err)
	} else {
		resp.Result = result
	}

	body, merr := json.Marshal(resp)
	if merr != nil {
		logging.Errorf("hostapi: marshal response for %s: %v", req.Method, merr)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.writer.WriteFrame(body); err != nil {
		logging.Errorf("hostapi: write response for %s: %v", req.Method, err)
	}
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	switch method {
	case "spawn":
		return s.handleSpawn(ctx, params)
	case "list":
		return s.handleList()
	case "kill":
		return s.handleKill(params)
	case "call_on":
		return s.handleCallOn(ctx, params)
	case "notify_on":
		return s.handleNotifyOn(ctx, params)
	case "list_pending_approvals":
		return s.handleListPendingApprovals()
	case "decide_approval":
		return s.handleDecideApproval(params)
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func toRPCError(err error) *agentsup.RPCErrorObject {
	if he, ok := err.(*agentsup.HostError); ok {
		data, _ := json.Marshal(he.Data)
		return &agentsup.RPCErrorObject{Code: he.Code, Message: he.Message, Data: data}
	}
	return &agentsup.RPCErrorObject{Code: agentsup.ErrCodeInternalError, Message: err.Error()}
}
