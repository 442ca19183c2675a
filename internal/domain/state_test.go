package domain

import (
	"encoding/json"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ProvisionState
		want     bool
	}{
		{StatePending, StateConnecting, true},
		{StateConnecting, StateGettingInfo, true},
		{StateConfiguringNetwork, StateRebooting, true}, // optional steps skipped
		{StateRebooting, StateCompleted, true},
		{StateGettingInfo, StateConnecting, false}, // no going back
		{StateConnecting, StateFailed, true},
		{StateFailed, StateRolledBack, true},
		{StateCompleted, StateFailed, false},
		{StateRolledBack, StateFailed, false},
		{StateCompleted, StateRolledBack, false},
		{StateConnecting, StateRolledBack, false}, // only via Failed
		{StateFailed, StateConnecting, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s → %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []ProvisionState{StateCompleted, StateFailed, StateRolledBack} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ProvisionState{StatePending, StateConnecting, StateRebooting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(StateConfiguringBroker)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"config_mqtt"` {
		t.Errorf("marshal = %s, want \"config_mqtt\"", b)
	}

	var s ProvisionState
	if err := json.Unmarshal([]byte(`"rolled_back"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != StateRolledBack {
		t.Errorf("unmarshal = %v, want StateRolledBack", s)
	}

	if err := json.Unmarshal([]byte(`"no_such_state"`), &s); err == nil {
		t.Error("unknown state name should fail")
	}
}

func TestRecordTransitionEnforcesMachine(t *testing.T) {
	r := NewRecord(CandidateNetwork{SSID: "ShellyPlus1-A8032ABE54DC"}, "RCC-Device-001")
	if r.State != StatePending {
		t.Fatalf("new record state = %v", r.State)
	}
	if err := r.Transition(StateConnecting); err != nil {
		t.Fatalf("Pending → Connecting: %v", err)
	}
	if err := r.Transition(StatePending); err == nil {
		t.Error("backwards transition should fail")
	}
	if err := r.Transition(StateFailed); err != nil {
		t.Fatalf("→ Failed: %v", err)
	}
	if err := r.Transition(StateRolledBack); err != nil {
		t.Fatalf("Failed → RolledBack: %v", err)
	}
	if err := r.Transition(StateFailed); err == nil {
		t.Error("RolledBack is terminal")
	}
}
