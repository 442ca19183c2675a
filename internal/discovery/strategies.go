package discovery

import (
	"context"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/rcc-labs/rcc/internal/domain"
)

var ipv4Pattern = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

// runPingProbe sends a single reachability probe to host and parses the
// responder's address from the output. A response from the wrong host
// (loopback fallback on some resolvers) is filtered by the caller.
func (e *Engine) runPingProbe(ctx context.Context, host string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout+time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", "1000", host)
	} else {
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", "1", host)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	m := ipv4Pattern.FindStringSubmatch(string(out))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// runServiceListen browses for service advertisements and takes the
// first match within the window. Degrades silently when mDNS is
// unavailable on the host.
func (e *Engine) runServiceListen(ctx context.Context) (domain.Endpoint, bool) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return domain.Endpoint{}, false
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(ctx, "_mqtt._tcp", "local.", entries); err != nil {
		return domain.Endpoint{}, false
	}

	for {
		select {
		case <-ctx.Done():
			return domain.Endpoint{}, false
		case entry, ok := <-entries:
			if !ok {
				return domain.Endpoint{}, false
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			addr := entry.AddrIPv4[0].String()
			if !usableAddr(addr) {
				continue
			}
			port := entry.Port
			if port == 0 {
				port = e.cfg.ServicePort
			}
			return domain.Endpoint{
				Address:  addr,
				Hostname: entry.HostName,
				Port:     port,
				Method:   domain.MethodServiceListen,
			}, true
		}
	}
}

type neighborEntry struct {
	ip  string
	mac string
}

var neighborLine = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\)?[ \t]+(?:at[ \t]+)?([0-9a-fA-F]{1,2}(?:[:-][0-9a-fA-F]{1,2}){5})`)

// readNeighborTable shells out to arp -a, which has the same flag on
// every supported platform, and extracts (ip, mac) pairs.
func readNeighborTable(ctx context.Context) ([]neighborEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return nil, err
	}
	return parseNeighborTable(string(out)), nil
}

func parseNeighborTable(out string) []neighborEntry {
	var entries []neighborEntry
	for _, m := range neighborLine.FindAllStringSubmatch(out, -1) {
		entries = append(entries, neighborEntry{ip: m[1], mac: m[2]})
	}
	return entries
}

// outboundAddr determines the host's outbound-routing address by
// opening a UDP socket toward a public address. No packet is sent.
func outboundAddr() (string, bool) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", false
	}
	defer conn.Close()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP == nil {
		return "", false
	}
	return local.IP.String(), true
}
