package wifi

import (
	"strconv"
	"strings"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// airportPath is Apple's private scan tool. networksetup covers
// joining and leaving; only scanning needs airport.
const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

type airportController struct {
	log   ports.Logger
	iface string
}

func (c *airportController) CurrentAssociation() string {
	out, err := runCmd("networksetup", "-getairportnetwork", c.iface)
	if err != nil {
		return ""
	}
	// "Current Wi-Fi Network: <ssid>", or an error sentence when the
	// radio is not associated.
	if strings.Contains(out, "not associated") {
		return ""
	}
	return firstField(strings.TrimSpace(out))
}

func (c *airportController) ListCandidateNetworks() ([]domain.CandidateNetwork, error) {
	out, err := runCmd(airportPath, "-s")
	if err != nil {
		return nil, err
	}
	return domain.FilterCandidates(parseAirportScan(out)), nil
}

func (c *airportController) Associate(ssid, password string, timeout time.Duration) bool {
	args := []string{"-setairportnetwork", c.iface, ssid}
	if password != "" {
		args = append(args, password)
	}
	out, err := runCmd("networksetup", args...)
	if err != nil || strings.Contains(out, "Failed") || strings.Contains(out, "Error") {
		c.log.Debug("networksetup join failed", ports.String("ssid", ssid), ports.Err(err))
		return false
	}
	return waitForAssociation(c.CurrentAssociation, ssid, timeout)
}

func (c *airportController) Disassociate() bool {
	_, err := runCmd(airportPath, "-z")
	return err == nil
}

// parseAirportScan parses `airport -s` output. Columns are fixed-ish:
//
//	SSID BSSID             RSSI CHANNEL HT CC SECURITY
//
// SSIDs may contain spaces, so fields are located from the BSSID.
func parseAirportScan(out string) []domain.CandidateNetwork {
	var nets []domain.CandidateNetwork
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Fields(line)
		bssidIdx := -1
		for j, f := range fields {
			if looksLikeBSSID(f) {
				bssidIdx = j
				break
			}
		}
		if bssidIdx < 1 || bssidIdx+1 >= len(fields) {
			continue
		}
		rssi, err := strconv.Atoi(fields[bssidIdx+1])
		if err != nil {
			continue
		}
		n := domain.CandidateNetwork{
			SSID:   strings.Join(fields[:bssidIdx], " "),
			BSSID:  strings.ToLower(fields[bssidIdx]),
			Signal: rssi,
		}
		if len(fields) > bssidIdx+5 {
			n.Security = fields[len(fields)-1]
		}
		nets = append(nets, n)
	}
	return nets
}

func looksLikeBSSID(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return false
		}
		for _, c := range p {
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
	}
	return true
}
