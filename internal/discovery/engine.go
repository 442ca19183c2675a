// Package discovery locates a named service endpoint on an unknown LAN.
//
// A lookup runs a cascade of strategies, first success wins, each one
// individually time-bounded: ICMP name probe, local name resolution,
// mDNS service listen, neighbor-table inspection, and finally a
// bounded-concurrency sweep of the local /24. A miss is a normal
// outcome, not an error.
package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// Config tunes the discovery engine. Zero values are replaced with the
// defaults below by New.
type Config struct {
	// ServicePort is the TCP port the target service listens on, used
	// to confirm candidates. Default 1883.
	ServicePort int

	// DomainSuffix is appended to identity hints for name-based
	// strategies. Default ".local".
	DomainSuffix string

	// ProbeTimeout bounds one sweep probe. Default 1s.
	ProbeTimeout time.Duration

	// DialTimeout bounds a reachability check. Default 2s.
	DialTimeout time.Duration

	// ListenWindow bounds the mDNS service listen. Default 5s.
	ListenWindow time.Duration

	// SweepWorkers bounds sweep concurrency. Default 50.
	SweepWorkers int

	// VendorPrefixes are hardware-address prefixes that mark a likely
	// service host in the neighbor table (Raspberry Pi OUIs by
	// default).
	VendorPrefixes []string
}

func (c *Config) applyDefaults() {
	if c.ServicePort == 0 {
		c.ServicePort = 1883
	}
	if c.DomainSuffix == "" {
		c.DomainSuffix = ".local"
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ListenWindow == 0 {
		c.ListenWindow = 5 * time.Second
	}
	if c.SweepWorkers == 0 {
		c.SweepWorkers = 50
	}
	if c.VendorPrefixes == nil {
		c.VendorPrefixes = []string{"b8:27:eb", "dc:a6:32", "e4:5f:01", "28:cd:c1"}
	}
}

// Engine resolves identity hints to endpoints. Safe for sequential use;
// the orchestrator never calls it concurrently.
type Engine struct {
	cfg Config
	log ports.Logger

	// Strategy seams, replaced in tests.
	pingProbe     func(ctx context.Context, host string) (string, bool)
	lookupHost    func(ctx context.Context, host string) ([]string, error)
	serviceListen func(ctx context.Context) (domain.Endpoint, bool)
	neighborTable func(ctx context.Context) ([]neighborEntry, error)
	dial          func(address string, port int, timeout time.Duration) bool
	localAddr     func() (string, bool)

	// lastMethod caches the strategy that last succeeded so repeated
	// lookups try it first.
	lastMethod domain.DiscoveryMethod
}

// New creates a discovery engine with the given configuration.
func New(cfg Config, logger ports.Logger) *Engine {
	cfg.applyDefaults()
	e := &Engine{cfg: cfg, log: logger}
	e.pingProbe = e.runPingProbe
	e.lookupHost = func(ctx context.Context, host string) ([]string, error) {
		return net.DefaultResolver.LookupHost(ctx, host)
	}
	e.serviceListen = e.runServiceListen
	e.neighborTable = readNeighborTable
	e.dial = dialCheck
	e.localAddr = outboundAddr
	return e
}

// Locate resolves an identity hint to an endpoint. The second return
// is false on a miss; error is reserved for malformed input.
func (e *Engine) Locate(ctx context.Context, identityHint string) (domain.Endpoint, bool, error) {
	if strings.TrimSpace(identityHint) == "" {
		return domain.Endpoint{}, false, errEmptyHint
	}

	type strategy struct {
		method domain.DiscoveryMethod
		run    func(ctx context.Context, hint string) (domain.Endpoint, bool)
	}
	cascade := []strategy{
		{domain.MethodPing, e.locateByPing},
		{domain.MethodNameResolution, e.locateByName},
		{domain.MethodServiceListen, e.locateByServiceListen},
		{domain.MethodNeighborTable, e.locateByNeighborTable},
		{domain.MethodSubnetSweep, e.locateBySweep},
	}
	// Try the method that worked last time first.
	if e.lastMethod != domain.MethodUnknown {
		for i, s := range cascade {
			if s.method == e.lastMethod && i > 0 {
				reordered := append([]strategy{s}, cascade[:i]...)
				cascade = append(reordered, cascade[i+1:]...)
				break
			}
		}
	}

	for _, s := range cascade {
		if err := ctx.Err(); err != nil {
			return domain.Endpoint{}, false, err
		}
		if ep, ok := s.run(ctx, identityHint); ok {
			e.lastMethod = s.method
			e.log.Info("endpoint located",
				ports.String("address", ep.Address),
				ports.String("method", ep.Method.String()))
			return ep, true, nil
		}
		e.log.Debug("discovery strategy missed", ports.String("method", s.method.String()))
	}
	return domain.Endpoint{}, false, nil
}

// ResolveByIdentity finds a device's address after it has rejoined the
// target network under a new name. When the hardware address is known,
// the neighbor table is consulted first: the advertised name may differ
// from the identity used for hardware matching.
func (e *Engine) ResolveByIdentity(ctx context.Context, name, mac string) (string, bool) {
	if mac != "" {
		want := normalizeMAC(mac)
		if entries, err := e.neighborTable(ctx); err == nil {
			for _, ent := range entries {
				if normalizeMAC(ent.mac) == want && usableAddr(ent.ip) {
					return ent.ip, true
				}
			}
		}
	}
	if name == "" {
		return "", false
	}
	if ip, ok := e.pingProbe(ctx, name+e.cfg.DomainSuffix); ok && usableAddr(ip) {
		return ip, true
	}
	if addrs, err := e.lookupHost(ctx, name+e.cfg.DomainSuffix); err == nil {
		for _, a := range addrs {
			if usableAddr(a) {
				return a, true
			}
		}
	}
	return "", false
}

// VerifyReachable reports whether a TCP connection to address:port
// succeeds within the configured dial timeout.
func (e *Engine) VerifyReachable(address string, port int) bool {
	return e.dial(address, port, e.cfg.DialTimeout)
}

func (e *Engine) locateByPing(ctx context.Context, hint string) (domain.Endpoint, bool) {
	ip, ok := e.pingProbe(ctx, hint+e.cfg.DomainSuffix)
	if !ok || !usableAddr(ip) {
		return domain.Endpoint{}, false
	}
	return domain.Endpoint{
		Address:  ip,
		Hostname: hint,
		Port:     e.cfg.ServicePort,
		Method:   domain.MethodPing,
	}, true
}

func (e *Engine) locateByName(ctx context.Context, hint string) (domain.Endpoint, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()
	addrs, err := e.lookupHost(ctx, hint+e.cfg.DomainSuffix)
	if err != nil {
		return domain.Endpoint{}, false
	}
	for _, a := range addrs {
		if usableAddr(a) {
			return domain.Endpoint{
				Address:  a,
				Hostname: hint,
				Port:     e.cfg.ServicePort,
				Method:   domain.MethodNameResolution,
			}, true
		}
	}
	return domain.Endpoint{}, false
}

func (e *Engine) locateByServiceListen(ctx context.Context, _ string) (domain.Endpoint, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ListenWindow)
	defer cancel()
	return e.serviceListen(ctx)
}

func (e *Engine) locateByNeighborTable(ctx context.Context, _ string) (domain.Endpoint, bool) {
	entries, err := e.neighborTable(ctx)
	if err != nil {
		return domain.Endpoint{}, false
	}
	for _, ent := range entries {
		if !e.vendorMatch(ent.mac) || !usableAddr(ent.ip) {
			continue
		}
		if e.dial(ent.ip, e.cfg.ServicePort, e.cfg.DialTimeout) {
			return domain.Endpoint{
				Address: ent.ip,
				Port:    e.cfg.ServicePort,
				Method:  domain.MethodNeighborTable,
			}, true
		}
	}
	return domain.Endpoint{}, false
}

func (e *Engine) vendorMatch(mac string) bool {
	m := normalizeMAC(mac)
	for _, p := range e.cfg.VendorPrefixes {
		if strings.HasPrefix(m, normalizeMAC(p)) {
			return true
		}
	}
	return false
}

// usableAddr rejects loopback and link-local responders, which name
// probes return when the real host is absent.
func usableAddr(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}

func normalizeMAC(mac string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToLower(r.Replace(mac))
}

func dialCheck(address string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// errEmptyHint is the only error Locate returns: malformed input.
var errEmptyHint = errors.New("discovery: empty identity hint")
