package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rcc-labs/rcc/internal/ports"
)

// Watcher monitors the config file and re-resolves the configuration
// when it changes, so long batches pick up tuned retry delays and
// timeouts at the next device boundary. Flag-set values keep their
// precedence: the changed map given at startup stays in force.
type Watcher struct {
	path     string
	base     Config
	changed  map[string]bool
	onChange func(Config)
	log      ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the given config file. base is the
// configuration as resolved at startup; onChange receives the newly
// resolved configuration after every file change.
func NewWatcher(path string, base Config, changed map[string]bool, onChange func(Config), log ports.Logger) *Watcher {
	return &Watcher{
		path:     path,
		base:     base,
		changed:  changed,
		onChange: onChange,
		log:      log,
	}
}

// Run watches until the context is cancelled. A missing file or an
// unwatchable directory downgrades to a no-op: live reload is a
// convenience, never a requirement.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("config watcher unavailable", ports.Err(err))
		return
	}
	defer watcher.Close()
	defer w.stopDebounce()

	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.log.Warn("config watch failed", ports.String("path", w.path), ports.Err(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

// stopDebounce cancels any pending reload so a reload cannot fire
// after Run has returned.
func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
}

// reload re-resolves the configuration from scratch: defaults, then
// file, then environment, with the original changed map guarding
// flag-set values.
func (w *Watcher) reload() {
	cfg := DefaultConfig()

	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.log.Warn("config reload failed", ports.String("path", w.path), ports.Err(err))
		return
	}
	if err := ApplyFileConfig(&cfg, fc, w.changed); err != nil {
		w.log.Warn("config reload rejected", ports.Err(err))
		return
	}
	if err := ApplyEnvConfig(&cfg, w.changed); err != nil {
		w.log.Warn("config reload rejected", ports.Err(err))
		return
	}

	// Preserve the flag-set values captured at startup.
	w.restoreChangedValues(&cfg)

	if err := cfg.ValidateDiscovery(); err != nil {
		w.log.Warn("config reload invalid", ports.Err(err))
		return
	}

	w.log.Info("configuration reloaded", ports.String("path", w.path))
	w.onChange(cfg)
}

// restoreChangedValues copies flag-set fields from the startup config,
// since flags outrank both file and environment.
func (w *Watcher) restoreChangedValues(cfg *Config) {
	if len(w.changed) == 0 {
		return
	}
	// The setters already skip changed flags, but fields set by flag to
	// a value the file no longer carries would fall back to defaults.
	copyIf := func(flag string, f func()) {
		if w.changed[flag] {
			f()
		}
	}
	copyIf("broker-host", func() { cfg.BrokerHost = w.base.BrokerHost })
	copyIf("broker-port", func() { cfg.BrokerPort = w.base.BrokerPort })
	copyIf("broker-user", func() { cfg.BrokerUsername = w.base.BrokerUsername })
	copyIf("broker-pass", func() { cfg.BrokerPassword = w.base.BrokerPassword })
	copyIf("wifi-ssid", func() { cfg.WiFiSSID = w.base.WiFiSSID })
	copyIf("wifi-pass", func() { cfg.WiFiPassword = w.base.WiFiPassword })
	copyIf("name-prefix", func() { cfg.NamePrefix = w.base.NamePrefix })
	copyIf("name-start", func() { cfg.NameStart = w.base.NameStart })
	copyIf("max-retries", func() { cfg.MaxRetries = w.base.MaxRetries })
	copyIf("retry-delay", func() { cfg.RetryDelay = w.base.RetryDelay })
	copyIf("associate-timeout", func() { cfg.AssociateTimeout = w.base.AssociateTimeout })
	copyIf("timeout", func() { cfg.HTTPTimeout = w.base.HTTPTimeout })
	copyIf("disable-cloud", func() { cfg.DisableCloud = w.base.DisableCloud })
	copyIf("rename-devices", func() { cfg.RenameDevices = w.base.RenameDevices })
	copyIf("keep-device-ap", func() { cfg.KeepDeviceAP = w.base.KeepDeviceAP })
	copyIf("checkpoint-dir", func() { cfg.CheckpointDir = w.base.CheckpointDir })
}
