// Package rcc provisions factory-default smart relays onto a WiFi
// network and an MQTT broker.
//
// Example usage:
//
//	cfg := rcc.DefaultConfig()
//	cfg.BrokerHost = "192.168.1.50"
//	cfg.WiFiSSID = "HomeNet"
//	cfg.WiFiPassword = os.Getenv("RCC_WIFI_PASSWORD")
//	session, err := rcc.Provision(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range session.Devices {
//	    fmt.Println(d.AssignedName, d.State)
//	}
package rcc

import (
	"context"
	"fmt"

	"github.com/rcc-labs/rcc/internal/adapters/deviceapi"
	logadapter "github.com/rcc-labs/rcc/internal/adapters/log"
	"github.com/rcc-labs/rcc/internal/adapters/mqtt"
	sessionrepo "github.com/rcc-labs/rcc/internal/adapters/session"
	"github.com/rcc-labs/rcc/internal/adapters/wifi"
	"github.com/rcc-labs/rcc/internal/cliconfig"
	"github.com/rcc-labs/rcc/internal/discovery"
	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
	"github.com/rcc-labs/rcc/internal/provisioner"
)

// Config holds the configuration for provisioning runs.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Session is the durable record of one provisioning batch.
type Session = domain.Session

// ProvisioningRecord is the per-device outcome within a session.
type ProvisioningRecord = domain.ProvisioningRecord

// CandidateNetwork is an unconfigured device access point seen in a
// scan.
type CandidateNetwork = domain.CandidateNetwork

// AnnouncedDevice is a device heard announcing itself on the broker.
type AnnouncedDevice = ports.AnnouncedDevice

// DefaultConfig returns a Config with sensible default values.
// At minimum, set BrokerHost and WiFiSSID before calling Provision.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Scan lists the factory-default device access points in range,
// strongest signal first.
func Scan() ([]CandidateNetwork, error) {
	ctl, err := wifi.New(logadapter.NewNoopLogger())
	if err != nil {
		return nil, err
	}
	return ctl.ListCandidateNetworks()
}

// Discover locates the broker on the local network using the cascade of
// discovery strategies. The hint is an address or hostname fragment,
// typically cfg.BrokerHost.
func Discover(ctx context.Context, cfg Config) (domain.Endpoint, bool, error) {
	engine := discovery.New(discovery.Config{
		ServicePort:  cfg.BrokerPort,
		ListenWindow: cfg.ListenWindow,
		ProbeTimeout: cfg.ProbeTimeout,
		SweepWorkers: cfg.SweepWorkers,
	}, logadapter.NewZerologAdapter())
	return engine.Locate(ctx, cfg.BrokerHost)
}

// Provision scans for unconfigured devices and provisions each one in
// turn. It blocks until the batch completes or the context is
// cancelled, and returns the session with one record per device.
func Provision(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logadapter.NewZerologAdapter()

	ctl, err := wifi.New(log)
	if err != nil {
		return nil, err
	}

	engine := discovery.New(discovery.Config{
		ServicePort:  cfg.BrokerPort,
		ListenWindow: cfg.ListenWindow,
		ProbeTimeout: cfg.ProbeTimeout,
		SweepWorkers: cfg.SweepWorkers,
	}, log)
	if ep, found, err := engine.Locate(ctx, cfg.BrokerHost); err != nil {
		return nil, err
	} else if found {
		cfg.BrokerHost = ep.Address
	}

	nets, err := ctl.ListCandidateNetworks()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	orch := provisioner.New(
		ctl,
		deviceapi.NewFactory(cfg.HTTPTimeout),
		sessionrepo.NewFileRepository(cfg.CheckpointDir),
		engine,
		nil,
		log,
		provisioner.Options{
			TargetSSID:       cfg.WiFiSSID,
			TargetPassword:   cfg.WiFiPassword,
			BrokerHost:       cfg.BrokerHost,
			BrokerPort:       cfg.BrokerPort,
			BrokerUsername:   cfg.BrokerUsername,
			BrokerPassword:   cfg.BrokerPassword,
			NamePrefix:       cfg.NamePrefix,
			NameStart:        cfg.NameStart,
			MaxRetries:       cfg.MaxRetries,
			RetryDelay:       cfg.RetryDelay,
			AssociateTimeout: cfg.AssociateTimeout,
			AssociateRetries: cfg.AssociateRetries,
			AssociateDelay:   cfg.AssociateDelay,
			SettleDelay:      cfg.SettleDelay,
			InterDeviceDelay: cfg.InterDeviceDelay,
			RebootWait:       cfg.RebootWait,
			DeviceAddress:    deviceapi.DefaultAPAddress,
			DisableCloud:     cfg.DisableCloud,
			RenameDevice:     cfg.RenameDevices,
			KeepDeviceAP:     cfg.KeepDeviceAP,
		},
	)
	return orch.ProvisionBatch(ctx, nets)
}

// Verify listens on the broker for cfg.VerifyWindow and returns the
// devices that announced themselves.
func Verify(ctx context.Context, cfg Config) ([]AnnouncedDevice, error) {
	v := mqtt.NewVerifier(cfg.BrokerHost, cfg.BrokerPort, cfg.BrokerUsername, cfg.BrokerPassword, logadapter.NewZerologAdapter())
	return v.Listen(ctx, cfg.VerifyWindow)
}
