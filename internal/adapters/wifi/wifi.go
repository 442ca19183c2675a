// Package wifi drives the operator machine's WiFi radio through the
// platform's own tooling: nmcli on Linux, netsh on Windows and
// networksetup/airport on macOS.
package wifi

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// commandTimeout bounds every shell-out. Scans can be slow; nothing
// should hang the batch.
const commandTimeout = 15 * time.Second

// pollInterval is how often Associate re-checks the association state
// while waiting for the join to establish.
var pollInterval = time.Second

// runCmd executes a platform tool and returns its combined output. It
// is a seam for tests.
var runCmd = func(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// New returns the controller for the host platform.
func New(log ports.Logger) (ports.WiFiController, error) {
	switch runtime.GOOS {
	case "linux":
		return &nmcliController{log: log}, nil
	case "windows":
		return &netshController{log: log}, nil
	case "darwin":
		return &airportController{log: log, iface: "en0"}, nil
	default:
		return nil, domain.ErrUnsupportedPlatform
	}
}

// waitForAssociation polls until current() reports ssid or the timeout
// elapses.
func waitForAssociation(current func() string, ssid string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if current() == ssid {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// firstField returns the value after the first colon in a "Key : value"
// line, trimmed.
func firstField(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}
