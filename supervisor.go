package agentsup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corvidlabs/agentsup/internal/logging"
	"github.com/corvidlabs/agentsup/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Supervisor is the process-wide orchestrator combining the registry, the
// approval mediator, and the upstream forwarder (spec §4, §6). It is the
// implementation behind the host-facing control plane's tool surface.
type Supervisor struct {
	registry  *Registry
	mediator  *ApprovalMediator
	forwarder *Forwarder

	defaultOpts ChildOptions
}

// NewSupervisor constructs a Supervisor. defaultOpts supplies the binary
// path, args, env, and handshake used for every Spawn; Spawn's cwd argument
// is the only per-call override.
func NewSupervisor(defaultOpts ChildOptions, mediator *ApprovalMediator, forwarder *Forwarder) *Supervisor {
	return &Supervisor{
		registry:    NewRegistry(),
		mediator:    mediator,
		forwarder:   forwarder,
		defaultOpts: defaultOpts,
	}
}

// Mediator exposes the approval mediator for the host API's
// list_pending_approvals/decide_approval handlers.
func (sup *Supervisor) Mediator() *ApprovalMediator { return sup.mediator }

// Forwarder exposes the forwarder so the host API can install itself as the
// upstream sink.
func (sup *Supervisor) Forwarder() *Forwarder { return sup.forwarder }

// Spawn starts a new child and publishes it under agentID once its
// handshake completes (spec §6, "spawn"). If agentID is empty a uuid is
// generated. cwd, if non-empty, overrides Dir; every other ChildOptions
// field comes from the supervisor's defaults.
func (sup *Supervisor) Spawn(ctx context.Context, agentID string, cwd string) (string, error) {
	if agentID == "" {
		agentID = uuid.NewString()
	}
	if _, exists := sup.registry.Lookup(agentID); exists {
		return "", NewHostError(ErrDuplicateAgent, agentID, "spawn", PhaseSpawn)
	}

	opts := sup.defaultOpts
	if cwd != "" {
		opts.Dir = cwd
	}

	logging.Debugf("spawning agent %s with binary %s", agentID, opts.BinaryPath)
	metrics.SpawnsTotal.Inc()
	sess, err := spawnChild(ctx, agentID, opts, sup.mediator, sup.forwarder, func(id string) {
		sup.registry.Remove(id)
		metrics.LiveAgents.Set(float64(sup.registry.Len()))
	})
	if err != nil {
		return "", NewHostError(NewLifecycleError("spawn failed", err), agentID, "spawn", PhaseSpawn)
	}

	if err := sup.registry.Insert(sess); err != nil {
		sess.kill()
		return "", NewHostError(err, agentID, "spawn", PhaseSpawn)
	}
	metrics.LiveAgents.Set(float64(sup.registry.Len()))

	return agentID, nil
}

// List returns every live agent id (spec §6, "list").
func (sup *Supervisor) List() []string {
	return sup.registry.List()
}

// Kill terminates the named child immediately (spec §6, "kill").
func (sup *Supervisor) Kill(agentID string) error {
	sess, ok := sup.registry.Lookup(agentID)
	if !ok {
		return NewHostError(ErrNoSuchAgent, agentID, "kill", PhaseShutdown)
	}
	if err := sess.kill(); err != nil {
		return NewHostError(NewTransportError("kill", err), agentID, "kill", PhaseShutdown)
	}
	logging.Debugf("killed agent %s", agentID)
	sup.registry.Remove(agentID)
	metrics.LiveAgents.Set(float64(sup.registry.Len()))
	return nil
}

// CallOn issues a request to the named child and awaits its reply (spec §6,
// "call_on").
func (sup *Supervisor) CallOn(ctx context.Context, agentID, method string, params json.RawMessage) (json.RawMessage, error) {
	sess, ok := sup.registry.Lookup(agentID)
	if !ok {
		return nil, NewHostError(ErrNoSuchAgent, agentID, method, PhaseCall)
	}
	result, err := sess.call(ctx, method, params)
	if err != nil {
		return nil, NewHostError(err, agentID, method, PhaseCall)
	}
	return result, nil
}

// NotifyOn sends a fire-and-forget notification to the named child (spec
// §6, "notify_on").
func (sup *Supervisor) NotifyOn(ctx context.Context, agentID, method string, params json.RawMessage) error {
	sess, ok := sup.registry.Lookup(agentID)
	if !ok {
		return NewHostError(ErrNoSuchAgent, agentID, method, PhaseNotify)
	}
	if err := sess.notify(ctx, method, params); err != nil {
		return NewHostError(err, agentID, method, PhaseNotify)
	}
	return nil
}

// ListPendingApprovals returns every outstanding approval key (spec §6,
// "list_pending_approvals").
func (sup *Supervisor) ListPendingApprovals() []string {
	return sup.mediator.ListPending()
}

// DecideApproval resolves a pending approval (spec §6, "decide_approval").
func (sup *Supervisor) DecideApproval(key string, decision json.RawMessage) error {
	if err := sup.mediator.Decide(key, decision); err != nil {
		return NewHostError(err, "", "decide_approval", PhaseApproval)
	}
	return nil
}

// Shutdown kills every live session concurrently and waits for all of them,
// leaving the registry empty (spec §4.6, supervisor-wide shutdown).
func (sup *Supervisor) Shutdown(ctx context.Context) error {
	sessions := sup.registry.Snapshot()
	logging.Infof("shutting down %d live sessions", len(sessions))

	g, _ := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			if err := sess.kill(); err != nil {
				return fmt.Errorf("kill %s: %w", sess.AgentID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, sess := range sessions {
		sup.registry.Remove(sess.AgentID)
	}
	return err
}
