package ports

import (
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
)

// WiFiController drives the operator machine's single WiFi radio.
// Calls block up to their timeout. Failures are reported as false or
// empty results rather than errors; only an unsupported platform is a
// hard error, raised by the adapter constructor.
//
// The radio is a shared mutable resource: the orchestrator owns the
// association state for the duration of a batch and restores it on the
// way out, including on abort paths.
type WiFiController interface {
	// CurrentAssociation returns the associated SSID, or "" when the
	// radio is not associated.
	CurrentAssociation() string

	// ListCandidateNetworks scans and returns factory-default device
	// APs, strongest signal first.
	ListCandidateNetworks() ([]domain.CandidateNetwork, error)

	// Associate joins the named network, waiting up to timeout for the
	// association to establish. An empty password joins an open AP.
	Associate(ssid, password string, timeout time.Duration) bool

	// Disassociate leaves the current network.
	Disassociate() bool
}
