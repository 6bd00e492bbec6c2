package invariant_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/opal-lang/pseudo/core/invariant"
)

// capture runs fn and returns the Violation it panicked with, if any.
func capture(fn func()) (v invariant.Violation, panicked bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		panicked = true
		v, _ = r.(invariant.Violation)
	}()
	fn()
	return v, false
}

func TestAssertionsPass(t *testing.T) {
	_, panicked := capture(func() {
		invariant.Precondition(true, "ok")
		invariant.Postcondition(1+1 == 2, "math works")
		invariant.Invariant(len("abc") == 3, "length")
		invariant.NotNil(&struct{}{}, "value")
		invariant.InRange(5, 0, 10, "index")
	})
	if panicked {
		t.Fatal("expected no panic")
	}
}

func TestAssertionKinds(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		kind string
		msg  string
	}{
		{"precondition", func() { invariant.Precondition(false, "source must be %s", "UTF-8") }, "PRECONDITION", "source must be UTF-8"},
		{"postcondition", func() { invariant.Postcondition(false, "stream must end with EOF") }, "POSTCONDITION", "stream must end with EOF"},
		{"invariant", func() { invariant.Invariant(false, "parser must advance") }, "INVARIANT", "parser must advance"},
		{"in range", func() { invariant.InRange(11, 0, 10, "index") }, "PRECONDITION", "index must be in range [0, 10], got 11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, panicked := capture(tt.fn)
			if !panicked {
				t.Fatal("expected panic")
			}
			if v.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", v.Kind, tt.kind)
			}
			if v.Message != tt.msg {
				t.Errorf("message = %q, want %q", v.Message, tt.msg)
			}
			if !strings.Contains(v.Error(), tt.kind+" VIOLATION") {
				t.Errorf("Error() missing kind: %s", v.Error())
			}
			if !strings.Contains(v.At, "invariant_test.go") {
				t.Errorf("expected caller location, got %q", v.At)
			}
		})
	}
}

func TestNotNilTypedNil(t *testing.T) {
	var p *strings.Builder
	v, panicked := capture(func() { invariant.NotNil(p, "builder") })
	if !panicked {
		t.Fatal("expected panic for typed nil")
	}
	if v.Message != "builder must not be nil" {
		t.Errorf("unexpected message: %s", v.Message)
	}

	var err error = v
	var target invariant.Violation
	if !errors.As(err, &target) {
		t.Error("Violation should satisfy errors.As")
	}
}
