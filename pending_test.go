package agentsup

import "testing"

func TestPendingTableInsertTake(t *testing.T) {
	pt := newPendingTable()
	sl := newSlot[callResult]()
	pt.insert("1", sl)

	if pt.len() != 1 {
		t.Fatalf("len = %d, want 1", pt.len())
	}

	got, ok := pt.take("1")
	if !ok {
		t.Fatal("take(\"1\") ok = false, want true")
	}
	if got != sl {
		t.Fatal("take returned a different slot than inserted")
	}
	if pt.len() != 0 {
		t.Fatalf("len after take = %d, want 0", pt.len())
	}

	if _, ok := pt.take("1"); ok {
		t.Fatal("second take(\"1\") ok = true, want false")
	}
}

func TestPendingTableInsertDuplicatePanics(t *testing.T) {
	pt := newPendingTable()
	pt.insert("1", newSlot[callResult]())

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate insert")
		}
	}()
	pt.insert("1", newSlot[callResult]())
}

func TestPendingTableCancel(t *testing.T) {
	pt := newPendingTable()
	pt.insert("1", newSlot[callResult]())

	if !pt.cancel("1") {
		t.Fatal("cancel(\"1\") = false, want true")
	}
	if pt.cancel("1") {
		t.Fatal("second cancel(\"1\") = true, want false")
	}
	if pt.len() != 0 {
		t.Fatalf("len after cancel = %d, want 0", pt.len())
	}
}

func TestPendingTableDrain(t *testing.T) {
	pt := newPendingTable()
	pt.insert("1", newSlot[callResult]())
	pt.insert("2", newSlot[callResult]())
	pt.insert("3", newSlot[callResult]())

	drained := pt.drain()
	if len(drained) != 3 {
		t.Fatalf("drain returned %d slots, want 3", len(drained))
	}
	if pt.len() != 0 {
		t.Fatalf("len after drain = %d, want 0", pt.len())
	}

	for _, sl := range drained {
		sl.resolve(callResult{err: NewClosedError("session closed")})
	}
	for _, sl := range drained {
		res := <-sl
		if res.err == nil {
			t.Fatal("drained slot resolved with nil error")
		}
	}
}

func TestSlotResolveDeliversOnce(t *testing.T) {
	sl := newSlot[int]()
	sl.resolve(42)
	if v := <-sl; v != 42 {
		t.Fatalf("resolve(42) delivered %d, want 42", v)
	}
}
