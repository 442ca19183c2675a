package cliconfig

import "os"

// ApplyEnvConfig applies RCC_* environment variables to the Config.
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("broker-host", os.Getenv("RCC_BROKER_HOST"), &cfg.BrokerHost)
	s.setString("broker-user", os.Getenv("RCC_BROKER_USERNAME"), &cfg.BrokerUsername)
	s.setString("broker-pass", os.Getenv("RCC_BROKER_PASSWORD"), &cfg.BrokerPassword)
	s.setString("wifi-ssid", os.Getenv("RCC_WIFI_SSID"), &cfg.WiFiSSID)
	s.setString("wifi-pass", os.Getenv("RCC_WIFI_PASSWORD"), &cfg.WiFiPassword)
	s.setString("name-prefix", os.Getenv("RCC_NAME_PREFIX"), &cfg.NamePrefix)
	s.setString("checkpoint-dir", os.Getenv("RCC_CHECKPOINT_DIR"), &cfg.CheckpointDir)

	if err := s.setIntFromString("broker-port", os.Getenv("RCC_BROKER_PORT"), &cfg.BrokerPort); err != nil {
		return err
	}
	if err := s.setIntFromString("name-start", os.Getenv("RCC_NAME_START"), &cfg.NameStart); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("RCC_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("sweep-workers", os.Getenv("RCC_SWEEP_WORKERS"), &cfg.SweepWorkers); err != nil {
		return err
	}

	if err := s.setDuration("retry-delay", os.Getenv("RCC_RETRY_DELAY"), &cfg.RetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("associate-timeout", os.Getenv("RCC_ASSOCIATE_TIMEOUT"), &cfg.AssociateTimeout); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("RCC_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("verify-window", os.Getenv("RCC_VERIFY_WINDOW"), &cfg.VerifyWindow); err != nil {
		return err
	}

	s.setBoolFromString("disable-cloud", os.Getenv("RCC_DISABLE_CLOUD"), &cfg.DisableCloud)
	s.setBoolFromString("rename-devices", os.Getenv("RCC_RENAME_DEVICES"), &cfg.RenameDevices)
	s.setBoolFromString("keep-device-ap", os.Getenv("RCC_KEEP_DEVICE_AP"), &cfg.KeepDeviceAP)

	return nil
}
