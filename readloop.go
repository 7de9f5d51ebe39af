package agentsup

import (
	"encoding/json"

	"github.com/corvidlabs/agentsup/internal/logging"
	"github.com/corvidlabs/agentsup/internal/metrics"
)

// readLoop is the one task per child that exclusively holds the child's
// output stream (spec §4.5). It classifies every inbound envelope and
// routes it, then on EOF or a fatal transport error runs the crash/shutdown
// sequence: mark closing, drain pending, cancel this agent's approvals, and
// remove the session from the registry.
func (s *ChildSession) readLoop(reader *FrameReader) {
	log := logging.ForAgent(s.AgentID)
	log.Debug().Msg("read loop started")
	defer s.finishReadLoop()

	for {
		body, err := reader.ReadFrame()
		if err != nil {
			if err == ErrStreamClosed || s.killed.Load() {
				log.Debug().Err(err).Msg("read loop exiting: EOF or killed")
			} else {
				log.Error().Err(err).Msg("read loop exiting: frame read failed")
			}
			return
		}

		kind, err := Classify(body)
		if err != nil {
			log.Warn().Err(err).Msg("malformed envelope dropped")
			continue
		}

		switch kind {
		case KindResponse:
			s.routeResponse(body)
		case KindNotification:
			s.routeNotification(body)
		case KindRequest:
			s.routeRequest(body)
		default:
			log.Warn().Int("kind", int(kind)).Msg("unknown message kind dropped")
		}
	}
}

// finishReadLoop runs the crash/EOF teardown sequence exactly once. It is
// also reachable from kill(), which stops the process first and lets the
// reader observe EOF naturally, converging on the same teardown path.
func (s *ChildSession) finishReadLoop() {
	s.state.Store(int32(stateClosing))

	log := logging.ForAgent(s.AgentID)

	reason := "session closed"
	if s.killed.Load() {
		reason = "killed"
	}
	drained := s.pending.drain()
	if len(drained) > 0 {
		log.Warn().Int("count", len(drained)).Str("reason", reason).Msg("draining pending calls on teardown")
	}
	for _, sl := range drained {
		sl.resolve(callResult{err: NewClosedError(reason)})
	}

	s.mediator.CancelForAgent(s.AgentID)

	if s.onClosed != nil {
		s.onClosed(s.AgentID)
	}

	log.Info().Str("reason", reason).Msg("session torn down")
	close(s.readLoopDone)
}

func (s *ChildSession) routeResponse(body []byte) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return
	}
	sl, ok := s.pending.take(resp.ID.Key())
	if !ok {
		metrics.StaleResponsesTotal.Inc()
		logging.ForAgent(s.AgentID).Warn().Str("id", resp.ID.Key()).Msg("stale response dropped: id no longer tracked")
		return
	}
	if resp.Error != nil {
		sl.resolve(callResult{err: NewRPCError(resp.Error)})
		return
	}
	sl.resolve(callResult{result: resp.Result})
}

func (s *ChildSession) routeNotification(body []byte) {
	var notif Notification
	if err := json.Unmarshal(body, &notif); err != nil {
		return
	}
	if hint, ok := extractConversationHint(notif.Params); ok {
		s.setLastConversationHint(hint)
	}
	s.forwarder.ForwardChildEvent(s.AgentID, notif.Method, notif.Params)
}

// routeRequest treats any child-originated request as an approval request
// (spec §4.5: "the supervisor treats any child-originated request as an
// approval request; it does not volunteer services to the child").
func (s *ChildSession) routeRequest(body []byte) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return
	}

	key := ApprovalKey(s.AgentID, req.ID)
	// Pass the zero value so ApprovalMediator.Register applies its own
	// configured default timeout rather than a value fixed at compile time.
	decisionSlot := s.mediator.Register(key, 0)
	log := logging.ForAgent(s.AgentID)
	log.Debug().Str("key", key).Str("method", req.Method).Msg("approval request registered")
	s.forwarder.ForwardApprovalRequest(s.AgentID, req.ID, req.Method, req.Params)

	// Awaiting the decision slot is this goroutine's only suspension point;
	// it must not block the outer readLoop, so it runs on its own goroutine.
	go func() {
		decision := <-decisionSlot
		log.Debug().Str("key", key).Msg("approval resolved")
		_ = s.respond(Response{ID: req.ID, Result: decision})
	}()
}

// extractConversationHint opportunistically reads a "conversationId" string
// field out of an opaque notification payload. The supervisor never
// interprets child semantics beyond this one diagnostic hint (spec's data
// model "last-conversation hint (opaque string, optional)").
func extractConversationHint(params json.RawMessage) (string, bool) {
	if len(params) == 0 {
		return "", false
	}
	var probe struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return "", false
	}
	if probe.ConversationID == "" {
		return "", false
	}
	return probe.ConversationID, true
}
