package editgate

import (
	"errors"
	"testing"
)

type principal bool

func (p principal) IsAdmin() bool { return bool(p) }

func TestEnable(t *testing.T) {
	tests := []struct {
		name    string
		admin   bool
		loaded  bool
		wantErr error
		want    State
	}{
		{"admin loaded", true, true, nil, Editable},
		{"admin not loaded", true, false, ErrNotInitialized, ReadOnly},
		{"user loaded", false, true, ErrAccessDenied, ReadOnly},
		{"user not loaded", false, false, ErrAccessDenied, ReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(principal(tt.admin))
			err := g.Enable(tt.loaded)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Enable() error = %v, want %v", err, tt.wantErr)
			}
			if g.State() != tt.want {
				t.Errorf("State = %s, want %s", g.State(), tt.want)
			}
		})
	}
}

func TestInitialStateAndDisable(t *testing.T) {
	g := New(principal(true))
	if g.Editable() {
		t.Fatal("Gate must start ReadOnly")
	}

	if err := g.Enable(true); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !g.Editable() {
		t.Fatal("Expected Editable")
	}

	g.Disable()
	if g.Editable() {
		t.Error("Disable must return to ReadOnly")
	}
	g.Disable()
	if g.State() != ReadOnly {
		t.Error("Disable must be idempotent")
	}
}

func TestNilPrincipal(t *testing.T) {
	g := New(nil)
	if err := g.Enable(true); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
	if g.IsAdmin() {
		t.Error("nil principal is not admin")
	}
}

func TestMessage(t *testing.T) {
	if Message(ErrAccessDenied) != MsgAccessDenied {
		t.Error("Unexpected access denied message")
	}
	if Message(ErrNotInitialized) != MsgNotInitialized {
		t.Error("Unexpected not initialized message")
	}
	if Message(nil) != MsgEnabled {
		t.Error("Unexpected enabled message")
	}
	if State(Editable).String() != "Editable" || ReadOnly.String() != "ReadOnly" {
		t.Error("Unexpected state names")
	}
}
