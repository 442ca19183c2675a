package cliconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logadapter "github.com/rcc-labs/rcc/internal/adapters/log"
)

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, `
broker_host = "10.0.0.9"
max_retries = 7
retry_delay = "9s"
`)

	base := DefaultConfig()
	base.BrokerHost = "flag-host"

	var got *Config
	w := NewWatcher(path, base, map[string]bool{"broker-host": true}, func(c Config) {
		got = &c
	}, logadapter.NewNoopLogger())
	w.reload()

	if got == nil {
		t.Fatal("onChange not called")
	}
	if got.MaxRetries != 7 || got.RetryDelay != 9*time.Second {
		t.Errorf("tunables not reloaded: %d/%v", got.MaxRetries, got.RetryDelay)
	}
	if got.BrokerHost != "flag-host" {
		t.Errorf("BrokerHost = %q, flag-set value must survive reload", got.BrokerHost)
	}
}

func TestWatcherReload_InvalidFileIgnored(t *testing.T) {
	path := writeConfig(t, "max_retries = [broken")

	called := false
	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(Config) {
		called = true
	}, logadapter.NewNoopLogger())
	w.reload()

	if called {
		t.Error("a broken file must not produce a config change")
	}
}

func TestWatcherRun_PicksUpWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("max_retries = 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 1)
	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(c Config) {
		select {
		case changes <- c:
		default:
		}
	}, logadapter.NewNoopLogger())
	go w.Run(ctx)

	// Give the watcher a moment to install before the write.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("max_retries = 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.MaxRetries != 9 {
			t.Errorf("MaxRetries = %d, want 9", got.MaxRetries)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config change observed")
	}
}

func TestWatcher_StopDebounceCancelsPendingReload(t *testing.T) {
	path := writeConfig(t, "max_retries = 3\n")

	called := make(chan struct{}, 1)
	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	}, logadapter.NewNoopLogger())

	w.debounceReload(50 * time.Millisecond)
	w.stopDebounce()

	select {
	case <-called:
		t.Error("reload fired after the watcher shut down")
	case <-time.After(200 * time.Millisecond):
	}
}
