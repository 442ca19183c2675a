package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rcc-labs/rcc/internal/domain"
)

// locateBySweep probes every host address in the local /24 with a
// bounded worker pool. Probes are independent and side-effect-free;
// the first confirmed responder cancels the remaining fan-out, though
// up to SweepWorkers in-flight probes are allowed to drain. As a side
// effect the probes populate the neighbor table, so a vendor-prefix
// pass over it runs afterwards when no probe connected directly.
func (e *Engine) locateBySweep(ctx context.Context, hint string) (domain.Endpoint, bool) {
	local, ok := e.localAddr()
	if !ok {
		return domain.Endpoint{}, false
	}
	prefix := subnetPrefix(local)
	if prefix == "" {
		return domain.Endpoint{}, false
	}

	var (
		mu    sync.Mutex
		found string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.SweepWorkers)

	for octet := 1; octet <= 254; octet++ {
		addr := fmt.Sprintf("%s.%d", prefix, octet)
		if addr == local {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if e.dial(addr, e.cfg.ServicePort, e.cfg.ProbeTimeout) {
				mu.Lock()
				if found == "" {
					found = addr
				}
				mu.Unlock()
				// Cancels gctx so queued probes become no-ops.
				return errSweepDone
			}
			return nil
		})
	}
	_ = g.Wait()

	if found != "" {
		return domain.Endpoint{
			Address: found,
			Port:    e.cfg.ServicePort,
			Method:  domain.MethodSubnetSweep,
		}, true
	}

	// The sweep warmed the neighbor table; a hardware-prefix match may
	// now be visible even though no service port answered in time.
	if ep, ok := e.locateByNeighborTable(ctx, hint); ok {
		ep.Method = domain.MethodSubnetSweep
		return ep, true
	}
	return domain.Endpoint{}, false
}

var errSweepDone = fmt.Errorf("sweep: match found")

// subnetPrefix returns the first three octets of an IPv4 address.
func subnetPrefix(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".")
}
