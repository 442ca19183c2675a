package domain

import "fmt"

// DiscoveryMethod identifies the cascade strategy that produced an
// Endpoint.
type DiscoveryMethod int

const (
	MethodUnknown DiscoveryMethod = iota
	MethodPing
	MethodNameResolution
	MethodServiceListen
	MethodNeighborTable
	MethodSubnetSweep
	MethodManual
)

// String returns a short operator-facing label.
func (m DiscoveryMethod) String() string {
	switch m {
	case MethodPing:
		return "ping"
	case MethodNameResolution:
		return "mdns"
	case MethodServiceListen:
		return "service-listen"
	case MethodNeighborTable:
		return "neighbor-table"
	case MethodSubnetSweep:
		return "subnet-sweep"
	case MethodManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Endpoint is a located service endpoint on the LAN. Immutable;
// discarded by the caller after use.
type Endpoint struct {
	Address  string
	Hostname string // source hostname, if the strategy knew one
	Port     int
	Method   DiscoveryMethod
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}
