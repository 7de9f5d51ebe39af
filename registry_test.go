package agentsup

import "testing"

func TestRegistryInsertLookupRemove(t *testing.T) {
	r := NewRegistry()
	sess := &ChildSession{AgentID: "agent-1"}

	if err := r.Insert(sess); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok := r.Lookup("agent-1")
	if !ok || got != sess {
		t.Fatalf("Lookup = %v, %v; want %v, true", got, ok, sess)
	}

	r.Remove("agent-1")
	if _, ok := r.Lookup("agent-1"); ok {
		t.Fatal("Lookup after Remove = true, want false")
	}
}

func TestRegistryDuplicateInsertRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Insert(&ChildSession{AgentID: "agent-1"}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := r.Insert(&ChildSession{AgentID: "agent-1"}); err != ErrDuplicateAgent {
		t.Fatalf("second Insert = %v, want ErrDuplicateAgent", err)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	_ = r.Insert(&ChildSession{AgentID: "b"})
	_ = r.Insert(&ChildSession{AgentID: "a"})
	_ = r.Insert(&ChildSession{AgentID: "c"})

	got := r.List()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() = %v, want %v", got, want)
		}
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Remove("does-not-exist") // must not panic
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}
