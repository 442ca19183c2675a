package wifi

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// netshController drives the Windows WLAN service. Joining a network
// requires a stored profile, so Associate writes a temporary profile
// XML first.
type netshController struct {
	log ports.Logger
}

func (c *netshController) CurrentAssociation() string {
	out, err := runCmd("netsh", "wlan", "show", "interfaces")
	if err != nil {
		return ""
	}
	return parseNetshInterfaces(out)
}

func (c *netshController) ListCandidateNetworks() ([]domain.CandidateNetwork, error) {
	out, err := runCmd("netsh", "wlan", "show", "networks", "mode=bssid")
	if err != nil {
		return nil, err
	}
	return domain.FilterCandidates(parseNetshNetworks(out)), nil
}

func (c *netshController) Associate(ssid, password string, timeout time.Duration) bool {
	if err := c.addProfile(ssid, password); err != nil {
		c.log.Debug("netsh add profile failed", ports.String("ssid", ssid), ports.Err(err))
		// An existing saved profile may still work.
	}
	if _, err := runCmd("netsh", "wlan", "connect", "name="+ssid); err != nil {
		c.log.Debug("netsh connect failed", ports.String("ssid", ssid), ports.Err(err))
		return false
	}
	return waitForAssociation(c.CurrentAssociation, ssid, timeout)
}

func (c *netshController) Disassociate() bool {
	_, err := runCmd("netsh", "wlan", "disconnect")
	return err == nil
}

func (c *netshController) addProfile(ssid, password string) error {
	profile := buildNetshProfile(ssid, password)
	path := filepath.Join(os.TempDir(), fmt.Sprintf("rcc_profile_%s.xml", sanitizeFilename(ssid)))
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		return err
	}
	defer os.Remove(path)
	out, err := runCmd("netsh", "wlan", "add", "profile", "filename="+path)
	if err != nil {
		return fmt.Errorf("add profile: %w: %s", err, strings.TrimSpace(out))
	}
	return nil
}

// buildNetshProfile renders the WLAN profile XML: open authentication
// when no password is given, WPA2-PSK otherwise.
func buildNetshProfile(ssid, password string) string {
	esc := func(s string) string {
		var b strings.Builder
		xml.EscapeText(&b, []byte(s))
		return b.String()
	}
	security := `<authEncryption><authentication>open</authentication><encryption>none</encryption><useOneX>false</useOneX></authEncryption>`
	if password != "" {
		security = fmt.Sprintf(`<authEncryption><authentication>WPA2PSK</authentication><encryption>AES</encryption><useOneX>false</useOneX></authEncryption><sharedKey><keyType>passPhrase</keyType><protected>false</protected><keyMaterial>%s</keyMaterial></sharedKey>`, esc(password))
	}
	return fmt.Sprintf(`<?xml version="1.0"?>
<WLANProfile xmlns="http://www.microsoft.com/networking/WLAN/profile/v1">
  <name>%[1]s</name>
  <SSIDConfig><SSID><name>%[1]s</name></SSID></SSIDConfig>
  <connectionType>ESS</connectionType>
  <connectionMode>manual</connectionMode>
  <MSM><security>%[2]s</security></MSM>
</WLANProfile>`, esc(ssid), security)
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

// parseNetshInterfaces extracts the associated SSID from
// "netsh wlan show interfaces" output. The BSSID line also starts with
// "SSID", so the match is anchored on the key.
func parseNetshInterfaces(out string) string {
	for _, line := range strings.Split(out, "\n") {
		key, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "SSID" {
			return firstField(line)
		}
	}
	return ""
}

// parseNetshNetworks walks the block-structured scan output. Each block
// opens with "SSID n : name"; signal arrives as a percentage.
func parseNetshNetworks(out string) []domain.CandidateNetwork {
	var nets []domain.CandidateNetwork
	var cur *domain.CandidateNetwork
	flush := func() {
		if cur != nil && cur.SSID != "" {
			nets = append(nets, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		key, _, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		switch {
		case strings.HasPrefix(key, "SSID "):
			flush()
			cur = &domain.CandidateNetwork{SSID: firstField(trimmed)}
		case cur == nil:
			continue
		case key == "Authentication":
			cur.Security = firstField(trimmed)
		case strings.HasPrefix(key, "BSSID ") && cur.BSSID == "":
			cur.BSSID = strings.ToLower(firstField(trimmed))
		case key == "Signal":
			pct, _ := strconv.Atoi(strings.TrimSuffix(firstField(trimmed), "%"))
			cur.Signal = percentToDBM(pct)
		}
	}
	flush()
	return nets
}
