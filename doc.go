// Package agentsup implements a multiplexing supervisor: a host-facing
// JSON-RPC 2.0 control plane that spawns and manages many long-lived child
// processes, each speaking its own JSON-RPC 2.0 dialect over framed stdio.
//
// The supervisor never interprets a child's method names or params beyond
// the envelope shape required to route it: requests, notifications, and
// responses are classified structurally (see Classify) and a child's
// dialect is supplied entirely through HandshakeConfig at spawn time.
//
// Basic usage:
//
//	mediator := agentsup.NewApprovalMediator(60*time.Second, []byte(`{"decision":"deny"}`))
//	forwarder := agentsup.NewForwarder()
//	sup := agentsup.NewSupervisor(agentsup.ChildOptions{BinaryPath: "my-agent"}, mediator, forwarder)
//
//	agentID, err := sup.Spawn(ctx, "", "/workspace/project")
//	if err != nil { ... }
//
//	result, err := sup.CallOn(ctx, agentID, "turn/start", params)
//	if err != nil { ... }
//
//	if err := sup.Kill(agentID); err != nil { ... }
package agentsup
