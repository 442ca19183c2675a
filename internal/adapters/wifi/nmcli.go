package wifi

import (
	"strconv"
	"strings"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// nmcliController talks to NetworkManager. Terse output mode (-t) is
// machine readable: fields are colon separated, literal colons escaped
// with a backslash.
type nmcliController struct {
	log ports.Logger
}

func (c *nmcliController) CurrentAssociation() string {
	out, err := runCmd("nmcli", "-t", "-f", "active,ssid", "dev", "wifi")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitEscaped(line, ':')
		if len(fields) >= 2 && fields[0] == "yes" {
			return fields[1]
		}
	}
	return ""
}

func (c *nmcliController) ListCandidateNetworks() ([]domain.CandidateNetwork, error) {
	out, err := runCmd("nmcli", "--rescan", "yes", "-t", "-f", "ssid,signal,security,bssid", "dev", "wifi", "list")
	if err != nil {
		return nil, err
	}
	return domain.FilterCandidates(parseNmcliScan(out)), nil
}

func (c *nmcliController) Associate(ssid, password string, timeout time.Duration) bool {
	args := []string{"dev", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	out, err := runCmd("nmcli", args...)
	if err != nil || strings.Contains(out, "Error") {
		// The SSID may be a saved connection profile rather than a
		// currently visible network (restoring the original network
		// after the device AP went away).
		if out2, err2 := runCmd("nmcli", "con", "up", "id", ssid); err2 != nil || strings.Contains(out2, "Error") {
			c.log.Debug("nmcli connect failed", ports.String("ssid", ssid), ports.Err(err))
			return false
		}
	}
	return waitForAssociation(c.CurrentAssociation, ssid, timeout)
}

func (c *nmcliController) Disassociate() bool {
	out, err := runCmd("nmcli", "-t", "-f", "device,type,state", "dev")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitEscaped(line, ':')
		if len(fields) >= 3 && fields[1] == "wifi" && fields[2] == "connected" {
			_, err := runCmd("nmcli", "dev", "disconnect", fields[0])
			return err == nil
		}
	}
	return true
}

// parseNmcliScan parses terse scan output: ssid:signal:security:bssid
// per line, signal in percent.
func parseNmcliScan(out string) []domain.CandidateNetwork {
	var nets []domain.CandidateNetwork
	for _, line := range strings.Split(out, "\n") {
		fields := splitEscaped(line, ':')
		if len(fields) < 4 || fields[0] == "" {
			continue
		}
		pct, _ := strconv.Atoi(fields[1])
		nets = append(nets, domain.CandidateNetwork{
			SSID:     fields[0],
			Signal:   percentToDBM(pct),
			Security: fields[2],
			BSSID:    strings.ToLower(fields[3]),
		})
	}
	return nets
}

// percentToDBM maps a 0-100 quality figure onto the usual dBm range.
func percentToDBM(pct int) int {
	if pct <= 0 {
		return -100
	}
	if pct >= 100 {
		return -50
	}
	return pct/2 - 100
}

// splitEscaped splits on sep, honouring backslash escapes the way
// nmcli -t emits them (BSSIDs contain escaped colons).
func splitEscaped(s string, sep byte) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			cur.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == sep:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
