package ports

import (
	"context"

	"github.com/rcc-labs/rcc/internal/domain"
)

// BrokerSettings is the broker configuration pushed to a device.
type BrokerSettings struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TopicPrefix string
	Enable      bool
}

// NetworkCredentials is the station configuration pushed to a device.
type NetworkCredentials struct {
	SSID     string
	Password string
	// KeepLocalAP leaves the device's own AP up after it joins the
	// target network, so a post-reboot cleanup pass can reach it.
	KeepLocalAP bool
}

// DeviceClient speaks the configuration protocol to one device at one
// address. Errors are distinguishable via the domain taxonomy:
// domain.ErrTimeout, domain.ErrConnectionFailed, *domain.ProtocolError.
type DeviceClient interface {
	GetDeviceInfo(ctx context.Context) (domain.DeviceInfo, error)
	ConfigureBroker(ctx context.Context, s BrokerSettings) error
	ConfigureNetwork(ctx context.Context, c NetworkCredentials) error
	DisableCloud(ctx context.Context) error
	SetName(ctx context.Context, name string) error
	SetDiscoverable(ctx context.Context, discoverable bool) error
	// Reboot may legitimately time out while the device drops the link;
	// implementations treat that as success.
	Reboot(ctx context.Context) error
	DisableLocalAP(ctx context.Context) error
	FactoryReset(ctx context.Context) error
}

// DeviceClientFactory builds a client bound to a device address. The
// orchestrator uses it once per device, after joining the device's AP.
type DeviceClientFactory func(address string) DeviceClient
