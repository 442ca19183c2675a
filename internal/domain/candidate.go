package domain

import (
	"sort"
	"strings"
)

// CandidateNetwork is a factory-default device access point observed in
// a WiFi scan. It is read-only input to provisioning.
type CandidateNetwork struct {
	SSID     string
	Signal   int // dBm, more negative is weaker
	Security string
	BSSID    string
}

// modelNames maps SSID substrings to marketing names. Longest keys are
// matched first so "plus1pm" wins over "plus1".
var modelNames = []struct {
	key  string
	name string
}{
	{"plus1pm", "Plus 1PM"},
	{"plus2pm", "Plus 2PM"},
	{"plus1", "Plus 1"},
	{"pro4pm", "Pro 4PM"},
	{"pro2pm", "Pro 2PM"},
	{"pro1pm", "Pro 1PM"},
	{"pro2", "Pro 2"},
	{"pro1", "Pro 1"},
	{"plugs", "Plug S"},
	{"mini1", "Mini 1"},
}

// IsDeviceAP reports whether the SSID follows the factory-default
// naming convention for an unconfigured device.
func (n CandidateNetwork) IsDeviceAP() bool {
	return strings.HasPrefix(strings.ToLower(n.SSID), "shelly")
}

// Model derives the device model from the SSID, e.g.
// "ShellyPlus1-A8032ABE54DC" → "Plus 1".
func (n CandidateNetwork) Model() string {
	if !n.IsDeviceAP() {
		return "Unknown"
	}
	lower := strings.ToLower(n.SSID)
	for _, m := range modelNames {
		if strings.Contains(lower, m.key) {
			return m.name
		}
	}
	return "Unknown Model"
}

// IdentityMAC extracts the hardware address suffix from the SSID, or ""
// when the SSID does not carry one. The suffix must be exactly 12 hex
// characters.
func (n CandidateNetwork) IdentityMAC() string {
	if !n.IsDeviceAP() {
		return ""
	}
	parts := strings.Split(n.SSID, "-")
	if len(parts) < 2 {
		return ""
	}
	mac := strings.ToUpper(parts[len(parts)-1])
	if len(mac) != 12 {
		return ""
	}
	for _, c := range mac {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			return ""
		}
	}
	return mac
}

// FilterCandidates keeps only device APs, strongest signal first.
func FilterCandidates(networks []CandidateNetwork) []CandidateNetwork {
	out := make([]CandidateNetwork, 0, len(networks))
	for _, n := range networks {
		if n.IsDeviceAP() {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Signal > out[j].Signal })
	return out
}
