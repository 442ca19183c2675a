package domain

import "testing"

func TestIsDeviceAP(t *testing.T) {
	tests := []struct {
		ssid string
		want bool
	}{
		{"ShellyPlus1-A8032ABE54DC", true},
		{"shellyplus2pm-b8032abe54ff", true},
		{"ShellyPro4PM-AABBCCDDEEFF", true},
		{"HomeNet", false},
		{"MyShellyBridge", false},
		{"", false},
	}
	for _, tt := range tests {
		n := CandidateNetwork{SSID: tt.ssid}
		if got := n.IsDeviceAP(); got != tt.want {
			t.Errorf("IsDeviceAP(%q) = %v, want %v", tt.ssid, got, tt.want)
		}
	}
}

func TestModel(t *testing.T) {
	tests := []struct {
		ssid string
		want string
	}{
		{"ShellyPlus1-A8032ABE54DC", "Plus 1"},
		{"ShellyPlus1PM-A8032ABE54DC", "Plus 1PM"}, // longest match wins
		{"ShellyPlus2PM-B8032ABE54FF", "Plus 2PM"},
		{"ShellyPro4PM-AABBCCDDEEFF", "Pro 4PM"},
		{"ShellyMini1-C0FFEE123456", "Mini 1"},
		{"ShellyFuture9-C0FFEE123456", "Unknown Model"},
		{"HomeNet", "Unknown"},
	}
	for _, tt := range tests {
		n := CandidateNetwork{SSID: tt.ssid}
		if got := n.Model(); got != tt.want {
			t.Errorf("Model(%q) = %q, want %q", tt.ssid, got, tt.want)
		}
	}
}

func TestIdentityMAC(t *testing.T) {
	tests := []struct {
		ssid string
		want string
	}{
		{"ShellyPlus1-A8032ABE54DC", "A8032ABE54DC"},
		{"shellyplus1-a8032abe54dc", "A8032ABE54DC"},
		{"ShellyPlus1-TOOSHORT", ""},
		{"ShellyPlus1-A8032ABE54DCFF", ""}, // too long
		{"ShellyPlus1-A8032ABE54ZZ", ""},   // not hex
		{"ShellyPlus1", ""},
		{"HomeNet-A8032ABE54DC", ""},
	}
	for _, tt := range tests {
		n := CandidateNetwork{SSID: tt.ssid}
		if got := n.IdentityMAC(); got != tt.want {
			t.Errorf("IdentityMAC(%q) = %q, want %q", tt.ssid, got, tt.want)
		}
	}
}

func TestFilterCandidates(t *testing.T) {
	in := []CandidateNetwork{
		{SSID: "HomeNet", Signal: -30},
		{SSID: "ShellyPlus1-A8032ABE54DC", Signal: -60},
		{SSID: "ShellyMini1-C0FFEE123456", Signal: -42},
		{SSID: "Printer", Signal: -50},
	}
	got := FilterCandidates(in)
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	if got[0].SSID != "ShellyMini1-C0FFEE123456" || got[1].SSID != "ShellyPlus1-A8032ABE54DC" {
		t.Errorf("not sorted strongest first: %v", got)
	}
}

func TestNewRecordFallsBackToUnknownMAC(t *testing.T) {
	r := NewRecord(CandidateNetwork{SSID: "ShellyPlus1-BADMAC"}, "RCC-Device-001")
	if r.MAC != "unknown" {
		t.Errorf("MAC = %q, want unknown", r.MAC)
	}
	if r.Model != "Plus 1" {
		t.Errorf("Model = %q, want Plus 1", r.Model)
	}
}

func TestFriendlyName(t *testing.T) {
	if got := (DeviceInfo{App: "Plus1"}).FriendlyName(); got != "Shelly Plus 1" {
		t.Errorf("FriendlyName = %q", got)
	}
	if got := (DeviceInfo{App: "SomethingNew"}).FriendlyName(); got != "SomethingNew" {
		t.Errorf("unknown app should pass through, got %q", got)
	}
}
