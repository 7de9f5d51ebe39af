package agentsup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvidlabs/agentsup/internal/logging"
)

// sessionState is the lifecycle state machine from spec §4.4:
//
//	spawning -> initializing -> ready <-> in-flight -> closing -> closed
//
// ready<->in-flight is conceptual (many in-flight calls are allowed
// concurrently); it is not tracked as a distinct stored state.
type sessionState int32

const (
	stateSpawning sessionState = iota
	stateInitializing
	stateReady
	stateClosing
	stateClosed
)

// processGracePeriod is how long kill waits after SIGINT before SIGKILL.
const processGracePeriod = 3 * time.Second

// HandshakeConfig parameterizes the initialization handshake a child
// expects. Per spec design note (b) the exact handshake is child-specific
// and must not be hard-coded; callers supply the request/notification pair
// to issue before the session is published to the registry.
type HandshakeConfig struct {
	RequestMethod      string
	RequestParams      json.RawMessage
	NotificationMethod string
	NotificationParams json.RawMessage
	Timeout            time.Duration
}

// ChildOptions configures how a child process is spawned.
type ChildOptions struct {
	BinaryPath string
	Args       []string
	Env        []string
	Dir        string
	Stderr     io.Writer
	FrameMode  FrameMode // framing used on the child's stdio; default auto-detect
	Handshake  HandshakeConfig
}

// ChildSession owns one subprocess, its writer half, its pending table, and
// the read loop reading its output (spec §4.4, data model table).
type ChildSession struct {
	AgentID string

	cmd     *exec.Cmd
	writer  *FrameWriter
	pending *pendingTable

	writeMu sync.Mutex // single-writer discipline over the child's stdin

	nextID  atomic.Uint64
	state   atomic.Int32
	killed  atomic.Bool // set by kill() before waiting, so teardown can tell a deliberate kill from a crash/EOF

	lastConvMu   sync.Mutex
	lastConvHint string

	mediator  *ApprovalMediator
	forwarder *Forwarder
	onClosed  func(agentID string) // removes the session from the registry

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	waitDone  chan struct{}

	readLoopDone chan struct{}
}

// spawnChild starts the subprocess, wires a FrameReader/FrameWriter to its
// stdio, starts the read loop, and performs the handshake. It does not
// publish the session anywhere — the registry does that only after this
// returns successfully (spec: "the registry exposes a session only after
// the child has completed its initialization handshake").
func spawnChild(ctx context.Context, agentID string, opts ChildOptions, mediator *ApprovalMediator, fwd *Forwarder, onClosed func(string)) (*ChildSession, error) {
	binary := opts.BinaryPath
	if binary == "" {
		binary = "agentsup-child"
	}

	log := logging.ForAgent(agentID)

	cmd := exec.CommandContext(ctx, binary, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Error().Err(err).Msg("stdin pipe failed")
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error().Err(err).Msg("stdout pipe failed")
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Str("binary", binary).Msg("failed to start child process")
		return nil, fmt.Errorf("start child: %w", err)
	}
	log.Info().Str("binary", binary).Int("pid", cmd.Process.Pid).Msg("child process started")

	sess := &ChildSession{
		AgentID:      agentID,
		cmd:          cmd,
		writer:       NewFrameWriter(stdin, opts.FrameMode),
		pending:      newPendingTable(),
		mediator:     mediator,
		forwarder:    fwd,
		onClosed:     onClosed,
		waitDone:     make(chan struct{}),
		readLoopDone: make(chan struct{}),
	}
	sess.state.Store(int32(stateSpawning))

	reader := NewFrameReader(stdout, opts.FrameMode)
	go sess.readLoop(reader)

	sess.state.Store(int32(stateInitializing))
	if err := sess.handshake(ctx, opts.Handshake); err != nil {
		log.Error().Err(err).Msg("handshake failed, killing child")
		sess.kill()
		return nil, err
	}
	sess.state.Store(int32(stateReady))
	log.Info().Msg("session ready")

	return sess, nil
}

func (s *ChildSession) handshake(ctx context.Context, hs HandshakeConfig) error {
	deadline := hs.Timeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	hctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if hs.RequestMethod != "" {
		if _, err := s.call(hctx, hs.RequestMethod, hs.RequestParams); err != nil {
			return fmt.Errorf("handshake request %q: %w", hs.RequestMethod, err)
		}
	}
	if hs.NotificationMethod != "" {
		if err := s.notify(hctx, hs.NotificationMethod, hs.NotificationParams); err != nil {
			return fmt.Errorf("handshake notification %q: %w", hs.NotificationMethod, err)
		}
	}
	return nil
}

// call allocates the next id, inserts a pending entry, writes the request
// frame under the single-writer lock, and awaits the completion slot (spec
// §4.4). On deadline expiry the pending entry is removed and a TimeoutError
// is returned; any later response for that id is dropped by pending.take.
func (s *ChildSession) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if sessionState(s.state.Load()) == stateClosing || sessionState(s.state.Load()) == stateClosed {
		return nil, NewClosedError("session closed")
	}

	id := s.nextID.Add(1)
	key := fmt.Sprintf("%d", id)
	sl := newSlot[callResult]()
	s.pending.insert(key, sl)

	req := Request{
		JSONRPC: JSONRPCVersion,
		ID:      ID{Raw: float64(id)},
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		s.pending.cancel(key)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := s.writeFrame(body); err != nil {
		s.pending.cancel(key)
		logging.ForAgent(s.AgentID).Error().Err(err).Str("method", method).Msg("write request failed")
		return nil, NewTransportError("write request", err)
	}

	select {
	case res := <-sl:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-ctx.Done():
		logging.ForAgent(s.AgentID).Warn().Str("method", method).Msg("call timed out")
		if s.pending.cancel(key) {
			return nil, NewTimeoutError(fmt.Sprintf("call %q timed out", method))
		}
		// Raced a concurrent resolution (response/drain); the deadline has
		// already fired, so the timeout is reported and whatever was left in
		// the buffered slot is discarded.
		return nil, NewTimeoutError(fmt.Sprintf("call %q timed out", method))
	case <-s.readLoopDone:
		return nil, NewClosedError("session closed")
	}
}

// notify serializes and writes a notification envelope; it never awaits a reply.
func (s *ChildSession) notify(_ context.Context, method string, params json.RawMessage) error {
	notif := Notification{JSONRPC: JSONRPCVersion, Method: method, Params: params}
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.writeFrame(body); err != nil {
		return NewTransportError("write notification", err)
	}
	return nil
}

// writeFrame serializes the single-writer discipline across exactly one
// frame write — not across the request/response round trip — so many
// concurrent callers can interleave writes without head-of-line blocking.
func (s *ChildSession) writeFrame(body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteFrame(body)
}

// respond writes a response frame back to the child, used to answer a
// child-originated request with its approval decision. Every child request
// is routed as an approval request; there is no separate stub response.
func (s *ChildSession) respond(resp Response) error {
	resp.JSONRPC = JSONRPCVersion
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.writeFrame(body)
}

func (s *ChildSession) setLastConversationHint(hint string) {
	s.lastConvMu.Lock()
	s.lastConvHint = hint
	s.lastConvMu.Unlock()
}

// LastConversationHint returns the most recent opaque conversation/session
// hint observed from the child, or "" if none has arrived yet.
func (s *ChildSession) LastConversationHint() string {
	s.lastConvMu.Lock()
	defer s.lastConvMu.Unlock()
	return s.lastConvHint
}

// kill terminates the child immediately: SIGINT, a short grace period, then
// SIGKILL. Any pending calls complete with a "killed" error via the read
// loop's drain path once it observes the process exit.
func (s *ChildSession) kill() error {
	log := logging.ForAgent(s.AgentID)
	var closeErr error
	s.closeOnce.Do(func() {
		log.Debug().Msg("kill requested: sending SIGINT")
		s.killed.Store(true)
		s.state.Store(int32(stateClosing))

		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(os.Interrupt)

			go s.doWait()

			select {
			case <-s.waitDone:
			case <-time.After(processGracePeriod):
				log.Warn().Msg("grace period expired, sending SIGKILL")
				_ = s.cmd.Process.Kill()
				<-s.waitDone
			}

			if s.waitErr != nil && !isSignalError(s.waitErr) {
				closeErr = s.waitErr
				log.Error().Err(closeErr).Msg("child process exited with error")
			}
		}
	})
	<-s.readLoopDone
	s.state.Store(int32(stateClosed))
	return closeErr
}

func (s *ChildSession) doWait() {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		close(s.waitDone)
	})
}

func isSignalError(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return exitErr.ProcessState != nil && !exitErr.Exited()
}
