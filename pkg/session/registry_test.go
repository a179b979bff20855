package session

import (
	"errors"
	"testing"

	"github.com/backkem/v2g/pkg/message"
)

func noopHandler(*Context, *message.Message) (Outcome, error) {
	return NextState(stateS1, nil), nil
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		typ     message.Type
		h       Handler
		wantErr error
	}{
		{"valid", stateS1, message.TypeSessionSetupReq, HandlerFunc(noopHandler), nil},
		{"undeclared state", State(60000), message.TypeSessionSetupReq, HandlerFunc(noopHandler), ErrInvalidRegistration},
		{"terminal state", StateTerminated, message.TypeSessionSetupReq, HandlerFunc(noopHandler), ErrInvalidRegistration},
		{"unknown type", stateS1, message.TypeUnknown, HandlerFunc(noopHandler), ErrInvalidRegistration},
		{"nil handler", stateS1, message.TypeSessionSetupReq, nil, ErrInvalidRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.state, tt.typ, tt.h)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterFunc(stateS1, message.TypeSessionSetupReq, noopHandler); err != nil {
		t.Fatalf("RegisterFunc() error = %v", err)
	}
	if err := r.RegisterFunc(stateS1, message.TypeSessionSetupReq, noopHandler); !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("RegisterFunc() duplicate error = %v, want ErrDuplicateHandler", err)
	}
	if err := r.RegisterFunc(stateS2, message.TypeSessionSetupReq, noopHandler); err != nil {
		t.Errorf("same type in another state error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_LookupAndExpected(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterFunc(stateS1, message.TypeServiceDiscoveryReq, noopHandler)
	_ = r.RegisterFunc(stateS1, message.TypeSessionStopReq, noopHandler)
	r.Seal()

	if _, ok := r.Lookup(stateS1, message.TypeServiceDiscoveryReq); !ok {
		t.Error("Lookup() should find registered handler")
	}
	if _, ok := r.Lookup(stateS2, message.TypeServiceDiscoveryReq); ok {
		t.Error("Lookup() should be keyed by state")
	}

	got := r.Expected(stateS1)
	want := []message.Type{message.TypeServiceDiscoveryReq, message.TypeSessionStopReq}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected() = %v, want %v", got, want)
	}

	if err := r.RegisterFunc(stateS2, message.TypeSessionStopReq, noopHandler); err != ErrRegistrySealed {
		t.Errorf("Register() after Seal error = %v, want ErrRegistrySealed", err)
	}
}

func TestState_Names(t *testing.T) {
	custom := DefineState("WaitForProbe")
	if custom.String() != "WaitForProbe" || !custom.IsValid() {
		t.Errorf("DefineState() = %s valid=%v", custom, custom.IsValid())
	}
	if StateStart.String() != "Start" || StateTerminated.String() != "Terminated" {
		t.Error("built-in state names wrong")
	}
	if !StatePaused.IsTerminal() || !StateTerminated.IsTerminal() || custom.IsTerminal() {
		t.Error("IsTerminal() classification wrong")
	}
	if State(60000).IsValid() {
		t.Error("undeclared state should be invalid")
	}
}
