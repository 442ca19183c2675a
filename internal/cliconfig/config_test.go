package cliconfig

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BrokerPort != 1883 {
		t.Errorf("BrokerPort = %d, want 1883", cfg.BrokerPort)
	}
	if cfg.NamePrefix != "RCC-Device" || cfg.NameStart != 1 {
		t.Errorf("naming defaults wrong: %q/%d", cfg.NamePrefix, cfg.NameStart)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != 2*time.Second {
		t.Errorf("retry defaults wrong: %d/%v", cfg.MaxRetries, cfg.RetryDelay)
	}
	if !cfg.DisableCloud || !cfg.RenameDevices || cfg.KeepDeviceAP {
		t.Errorf("step toggles wrong: %v/%v/%v", cfg.DisableCloud, cfg.RenameDevices, cfg.KeepDeviceAP)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.BrokerHost = "" },
			wantErr: "broker host",
		},
		{
			name:    "missing wifi ssid",
			mutate:  func(c *Config) { c.WiFiSSID = "" },
			wantErr: "wifi ssid",
		},
		{
			name:    "broker port out of range",
			mutate:  func(c *Config) { c.BrokerPort = 70000 },
			wantErr: "broker port",
		},
		{
			name:    "zero name start",
			mutate:  func(c *Config) { c.NameStart = 0 },
			wantErr: "name start",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.MaxRetries = 0 },
			wantErr: "max retries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BrokerHost = "192.168.1.50"
			cfg.WiFiSSID = "HomeNet"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if cfg.CheckpointDir == "" {
					t.Error("CheckpointDir not derived")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigSetterRespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BrokerHost = "from-flag"

	s := newConfigSetter(map[string]bool{"broker-host": true})
	s.setString("broker-host", "from-file", &cfg.BrokerHost)
	if cfg.BrokerHost != "from-flag" {
		t.Errorf("BrokerHost = %q, flag value must win", cfg.BrokerHost)
	}

	s.setString("wifi-ssid", "FileNet", &cfg.WiFiSSID)
	if cfg.WiFiSSID != "FileNet" {
		t.Errorf("WiFiSSID = %q, unchanged flag should accept file value", cfg.WiFiSSID)
	}
}
