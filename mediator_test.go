package agentsup

import (
	"encoding/json"
	"testing"
	"time"
)

func TestApprovalMediatorDecide(t *testing.T) {
	m := NewApprovalMediator(time.Minute, []byte(`"deny"`))
	sl := m.Register("agent-1:1", 0)

	if err := m.Decide("agent-1:1", []byte(`"allow"`)); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	var decision string
	if err := json.Unmarshal(<-sl, &decision); err != nil {
		t.Fatalf("unmarshal decision: %v", err)
	}
	if decision != "allow" {
		t.Fatalf("decision = %q, want %q", decision, "allow")
	}
}

func TestApprovalMediatorDecideUnknownKey(t *testing.T) {
	m := NewApprovalMediator(time.Minute, []byte(`"deny"`))
	if err := m.Decide("no-such-key", []byte(`"allow"`)); err != ErrApprovalNotFound {
		t.Fatalf("Decide on unknown key = %v, want ErrApprovalNotFound", err)
	}
}

func TestApprovalMediatorDecideTwiceFails(t *testing.T) {
	m := NewApprovalMediator(time.Minute, []byte(`"deny"`))
	m.Register("agent-1:1", 0)
	if err := m.Decide("agent-1:1", []byte(`"allow"`)); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if err := m.Decide("agent-1:1", []byte(`"allow"`)); err != ErrApprovalNotFound {
		t.Fatalf("second Decide = %v, want ErrApprovalNotFound", err)
	}
}

func TestApprovalMediatorExpiresToDefault(t *testing.T) {
	m := NewApprovalMediator(time.Minute, []byte(`"deny"`))
	sl := m.Register("agent-1:1", 10*time.Millisecond)

	select {
	case decision := <-sl:
		if string(decision) != `"deny"` {
			t.Fatalf("expired decision = %s, want %q", decision, `"deny"`)
		}
	case <-time.After(time.Second):
		t.Fatal("approval did not expire within timeout")
	}
}

func TestApprovalMediatorCancelForAgent(t *testing.T) {
	m := NewApprovalMediator(time.Minute, []byte(`"deny"`))
	slA := m.Register("agent-1:1", 0)
	slB := m.Register("agent-1:2", 0)
	slOther := m.Register("agent-2:1", 0)

	m.CancelForAgent("agent-1")

	if decision := <-slA; string(decision) != `"deny"` {
		t.Fatalf("slA decision = %s, want deny", decision)
	}
	if decision := <-slB; string(decision) != `"deny"` {
		t.Fatalf("slB decision = %s, want deny", decision)
	}

	if pending := m.ListPending(); len(pending) != 1 || pending[0] != "agent-2:1" {
		t.Fatalf("ListPending after cancel = %v, want [agent-2:1]", pending)
	}

	// agent-2's entry must remain untouched by the cancellation.
	if err := m.Decide("agent-2:1", []byte(`"allow"`)); err != nil {
		t.Fatalf("Decide agent-2: %v", err)
	}
	if decision := <-slOther; string(decision) != `"allow"` {
		t.Fatalf("slOther decision = %s, want allow", decision)
	}
}

func TestApprovalKeyFormat(t *testing.T) {
	key := ApprovalKey("agent-1", ID{Raw: float64(5)})
	if key != "agent-1:5" {
		t.Fatalf("ApprovalKey = %q, want %q", key, "agent-1:5")
	}
}
