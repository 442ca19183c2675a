package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BrokerHost     string `toml:"broker_host"`
	BrokerPort     int    `toml:"broker_port"`
	BrokerUsername string `toml:"broker_username"`
	BrokerPassword string `toml:"broker_password"`

	WiFiSSID     string `toml:"wifi_ssid"`
	WiFiPassword string `toml:"wifi_password"`

	NamePrefix string `toml:"name_prefix"`
	NameStart  int    `toml:"name_start"`

	MaxRetries       int    `toml:"max_retries"`
	RetryDelay       string `toml:"retry_delay"`
	AssociateTimeout string `toml:"associate_timeout"`
	AssociateRetries int    `toml:"associate_retries"`
	AssociateDelay   string `toml:"associate_delay"`
	SettleDelay      string `toml:"settle_delay"`
	InterDeviceDelay string `toml:"inter_device_delay"`
	RebootWait       string `toml:"reboot_wait"`
	HTTPTimeout      string `toml:"http_timeout"`

	DisableCloud  *bool `toml:"disable_cloud"`
	RenameDevices *bool `toml:"rename_devices"`
	KeepDeviceAP  *bool `toml:"keep_device_ap"`

	CheckpointDir string `toml:"checkpoint_dir"`

	ListenWindow string `toml:"listen_window"`
	ProbeTimeout string `toml:"probe_timeout"`
	SweepWorkers int    `toml:"sweep_workers"`
	VerifyWindow string `toml:"verify_window"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.rcc/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rcc", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("broker-host", fc.BrokerHost, &cfg.BrokerHost)
	s.setInt("broker-port", fc.BrokerPort, &cfg.BrokerPort)
	s.setString("broker-user", fc.BrokerUsername, &cfg.BrokerUsername)
	s.setString("broker-pass", fc.BrokerPassword, &cfg.BrokerPassword)
	s.setString("wifi-ssid", fc.WiFiSSID, &cfg.WiFiSSID)
	s.setString("wifi-pass", fc.WiFiPassword, &cfg.WiFiPassword)
	s.setString("name-prefix", fc.NamePrefix, &cfg.NamePrefix)
	s.setInt("name-start", fc.NameStart, &cfg.NameStart)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("associate-retries", fc.AssociateRetries, &cfg.AssociateRetries)
	s.setInt("sweep-workers", fc.SweepWorkers, &cfg.SweepWorkers)
	s.setString("checkpoint-dir", fc.CheckpointDir, &cfg.CheckpointDir)

	if err := s.setDuration("retry-delay", fc.RetryDelay, &cfg.RetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("associate-timeout", fc.AssociateTimeout, &cfg.AssociateTimeout); err != nil {
		return err
	}
	if err := s.setDuration("associate-delay", fc.AssociateDelay, &cfg.AssociateDelay); err != nil {
		return err
	}
	if err := s.setDuration("settle-delay", fc.SettleDelay, &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("inter-device-delay", fc.InterDeviceDelay, &cfg.InterDeviceDelay); err != nil {
		return err
	}
	if err := s.setDuration("reboot-wait", fc.RebootWait, &cfg.RebootWait); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("listen-window", fc.ListenWindow, &cfg.ListenWindow); err != nil {
		return err
	}
	if err := s.setDuration("probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("verify-window", fc.VerifyWindow, &cfg.VerifyWindow); err != nil {
		return err
	}

	s.setBool("disable-cloud", fc.DisableCloud, &cfg.DisableCloud)
	s.setBool("rename-devices", fc.RenameDevices, &cfg.RenameDevices)
	s.setBool("keep-device-ap", fc.KeepDeviceAP, &cfg.KeepDeviceAP)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
