// Package cliconfig resolves the effective rcc configuration from
// flags, environment, config file and defaults, in that precedence.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultBrokerPort is the standard MQTT port.
const DefaultBrokerPort = 1883

// Config holds CLI configuration for rcc.
type Config struct {
	BrokerHost     string
	BrokerPort     int
	BrokerUsername string
	BrokerPassword string

	WiFiSSID     string
	WiFiPassword string

	NamePrefix string
	NameStart  int

	MaxRetries       int
	RetryDelay       time.Duration
	AssociateTimeout time.Duration
	AssociateRetries int
	AssociateDelay   time.Duration
	SettleDelay      time.Duration
	InterDeviceDelay time.Duration
	RebootWait       time.Duration
	HTTPTimeout      time.Duration

	DisableCloud  bool
	RenameDevices bool
	KeepDeviceAP  bool

	CheckpointDir string

	ListenWindow time.Duration
	ProbeTimeout time.Duration
	SweepWorkers int
	VerifyWindow time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BrokerPort:       DefaultBrokerPort,
		BrokerPassword:   os.Getenv("RCC_BROKER_PASSWORD"),
		WiFiPassword:     os.Getenv("RCC_WIFI_PASSWORD"),
		NamePrefix:       "RCC-Device",
		NameStart:        1,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		AssociateTimeout: 30 * time.Second,
		AssociateRetries: 3,
		AssociateDelay:   5 * time.Second,
		SettleDelay:      3 * time.Second,
		InterDeviceDelay: 2 * time.Second,
		RebootWait:       5 * time.Second,
		HTTPTimeout:      10 * time.Second,
		DisableCloud:     true,
		RenameDevices:    true,
		CheckpointDir:    "", // Derived during Validate
		ListenWindow:     5 * time.Second,
		ProbeTimeout:     time.Second,
		SweepWorkers:     50,
		VerifyWindow:     30 * time.Second,
	}
}

// Validate checks the configuration for errors and sets derived
// defaults. Provisioning needs the full set; discovery-only commands
// call ValidateDiscovery instead.
func (c *Config) Validate() error {
	if c.BrokerHost == "" {
		return fmt.Errorf("broker host is required")
	}
	if c.WiFiSSID == "" {
		return fmt.Errorf("wifi ssid is required")
	}
	return c.ValidateDiscovery()
}

// ValidateDiscovery checks only the settings the discovery and
// verification commands need.
func (c *Config) ValidateDiscovery() error {
	if c.BrokerPort <= 0 || c.BrokerPort > 65535 {
		return fmt.Errorf("broker port out of range: %d", c.BrokerPort)
	}
	if c.NameStart < 1 {
		return fmt.Errorf("name start must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.SweepWorkers < 1 {
		return fmt.Errorf("sweep workers must be positive")
	}

	if c.CheckpointDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.CheckpointDir = h + "/.rcc/sessions"
		} else {
			c.CheckpointDir = "."
		}
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
