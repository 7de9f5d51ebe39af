package agentsup_test

import (
	"testing"

	"github.com/corvidlabs/agentsup"
)

func TestPtr(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		p := agentsup.Ptr("hello")
		if *p != "hello" {
			t.Errorf("Ptr(\"hello\") = %q, want \"hello\"", *p)
		}
	})

	t.Run("int", func(t *testing.T) {
		p := agentsup.Ptr(42)
		if *p != 42 {
			t.Errorf("Ptr(42) = %d, want 42", *p)
		}
	})

	t.Run("bool", func(t *testing.T) {
		p := agentsup.Ptr(false)
		if *p != false {
			t.Errorf("Ptr(false) = %v, want false", *p)
		}
	})

	t.Run("zero values", func(t *testing.T) {
		if *agentsup.Ptr(0) != 0 {
			t.Error("Ptr(0) != 0")
		}
		if *agentsup.Ptr("") != "" {
			t.Error(`Ptr("") != ""`)
		}
	})

	t.Run("returns distinct pointers", func(t *testing.T) {
		a := agentsup.Ptr("same")
		b := agentsup.Ptr("same")
		if a == b {
			t.Error("Ptr returned same pointer for different calls")
		}
	})
}
