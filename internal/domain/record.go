package domain

import (
	"fmt"
	"time"
)

// Step names as recorded in CompletedSteps and checkpoints. The order
// of appearance in a record always reflects transition order.
const (
	StepConnectAP    = "connect_ap"
	StepGetInfo      = "get_info"
	StepConfigMQTT   = "config_mqtt"
	StepConfigWiFi   = "config_wifi"
	StepDisableCloud = "disable_cloud"
	StepRename       = "rename"
	StepReboot       = "reboot"
	StepDisableAP    = "disable_ap"
)

// DeviceInfo is the identity a device reports about itself.
type DeviceInfo struct {
	ID       string `json:"id"`
	MAC      string `json:"mac"`
	Model    string `json:"model"`
	App      string `json:"app"`
	Firmware string `json:"fw_id"`
	Version  string `json:"ver"`
	Gen      int    `json:"gen"`
}

// appNames maps device application identifiers to marketing names.
var appNames = map[string]string{
	"Plus1":   "Shelly Plus 1",
	"Plus1PM": "Shelly Plus 1PM",
	"Plus2PM": "Shelly Plus 2PM",
	"Pro1":    "Shelly Pro 1",
	"Pro1PM":  "Shelly Pro 1PM",
	"Pro2":    "Shelly Pro 2",
	"Pro2PM":  "Shelly Pro 2PM",
	"Pro4PM":  "Shelly Pro 4PM",
	"PlugS":   "Shelly Plug S",
	"Mini1":   "Shelly Mini 1",
}

// FriendlyName returns the marketing name for the device, falling back
// to the raw application identifier.
func (d DeviceInfo) FriendlyName() string {
	if n, ok := appNames[d.App]; ok {
		return n
	}
	return d.App
}

// ProvisioningRecord is the durable outcome of provisioning one device.
// Exactly one record exists per device per batch run. CompletedSteps
// only grows; optional steps that failed are never appended.
type ProvisioningRecord struct {
	MAC            string         `json:"mac"`
	SourceSSID     string         `json:"ap_ssid"`
	Model          string         `json:"model"`
	State          ProvisionState `json:"state"`
	AssignedName   string         `json:"assigned_name,omitempty"`
	FinalIP        string         `json:"final_ip,omitempty"`
	CompletedSteps []string       `json:"steps_completed"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewRecord creates a pending record for a candidate network.
func NewRecord(network CandidateNetwork, name string) *ProvisioningRecord {
	mac := network.IdentityMAC()
	if mac == "" {
		mac = "unknown"
	}
	return &ProvisioningRecord{
		MAC:            mac,
		SourceSSID:     network.SSID,
		Model:          network.Model(),
		State:          StatePending,
		AssignedName:   name,
		CompletedSteps: []string{},
		Timestamp:      time.Now(),
	}
}

// Transition moves the record to a new state, enforcing the machine.
func (r *ProvisioningRecord) Transition(to ProvisionState) error {
	if !r.State.CanTransition(to) {
		return fmt.Errorf("illegal transition %s → %s", r.State, to)
	}
	r.State = to
	return nil
}

// CompleteStep appends a step name to the completed list.
func (r *ProvisioningRecord) CompleteStep(name string) {
	r.CompletedSteps = append(r.CompletedSteps, name)
}

// StepCompleted reports whether the named step succeeded.
func (r *ProvisioningRecord) StepCompleted(name string) bool {
	for _, s := range r.CompletedSteps {
		if s == name {
			return true
		}
	}
	return false
}
