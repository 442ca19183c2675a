package domain

import (
	"encoding/json"
	"fmt"
)

// ProvisionState is the per-device provisioning state machine.
//
// The happy path is strictly increasing:
//
//	Pending → Connecting → GettingInfo → ConfiguringBroker →
//	ConfiguringNetwork → DisablingCloud → Renaming → Rebooting →
//	Reassociating → DisablingAP → Completed
//
// StateFailed is reachable from any non-terminal state. StateRolledBack
// is reachable only from StateFailed. Completed, Failed and RolledBack
// are terminal.
type ProvisionState int

const (
	StatePending ProvisionState = iota
	StateConnecting
	StateGettingInfo
	StateConfiguringBroker
	StateConfiguringNetwork
	StateDisablingCloud
	StateRenaming
	StateRebooting
	StateReassociating
	StateDisablingAP
	StateCompleted
	StateFailed
	StateRolledBack
)

var stateNames = map[ProvisionState]string{
	StatePending:            "pending",
	StateConnecting:         "connecting",
	StateGettingInfo:        "getting_info",
	StateConfiguringBroker:  "config_mqtt",
	StateConfiguringNetwork: "config_wifi",
	StateDisablingCloud:     "disable_cloud",
	StateRenaming:           "rename",
	StateRebooting:          "reboot",
	StateReassociating:      "reassociate",
	StateDisablingAP:        "disable_ap",
	StateCompleted:          "completed",
	StateFailed:             "failed",
	StateRolledBack:         "rolled_back",
}

var statesByName = func() map[string]ProvisionState {
	m := make(map[string]ProvisionState, len(stateNames))
	for s, n := range stateNames {
		m[n] = s
	}
	return m
}()

// String returns the wire name of the state, as used in checkpoints.
func (s ProvisionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the state admits no further transitions.
func (s ProvisionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRolledBack
}

// CanTransition reports whether s → to is a legal transition.
func (s ProvisionState) CanTransition(to ProvisionState) bool {
	if s.Terminal() {
		return s == StateFailed && to == StateRolledBack
	}
	if to == StateFailed {
		return true
	}
	if to == StateRolledBack {
		return false
	}
	// Forward only. Optional steps may be skipped, so any strictly
	// later working state (or Completed) is reachable in one hop.
	return to > s && to <= StateCompleted
}

// MarshalJSON encodes the state as its wire name.
func (s ProvisionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name back into a state.
func (s *ProvisionState) UnmarshalJSON(b []byte) error {
	var n string
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	st, ok := statesByName[n]
	if !ok {
		return fmt.Errorf("unknown provision state %q", n)
	}
	*s = st
	return nil
}
