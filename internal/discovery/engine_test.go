package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logadapter "github.com/rcc-labs/rcc/internal/adapters/log"
	"github.com/rcc-labs/rcc/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{ProbeTimeout: 10 * time.Millisecond, DialTimeout: 10 * time.Millisecond, ListenWindow: 10 * time.Millisecond}, logadapter.NewNoopLogger())
	// Neutral seams: every strategy misses unless a test overrides it.
	e.pingProbe = func(context.Context, string) (string, bool) { return "", false }
	e.lookupHost = func(context.Context, string) ([]string, error) { return nil, errors.New("no such host") }
	e.serviceListen = func(context.Context) (domain.Endpoint, bool) { return domain.Endpoint{}, false }
	e.neighborTable = func(context.Context) ([]neighborEntry, error) { return nil, nil }
	e.dial = func(string, int, time.Duration) bool { return false }
	e.localAddr = func() (string, bool) { return "", false }
	return e
}

func TestLocate_EmptyHintIsError(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.Locate(context.Background(), "  ")
	assert.Error(t, err)
}

func TestLocate_MissIsNotAnError(t *testing.T) {
	e := newTestEngine(t)
	ep, ok, err := e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, ep)
}

func TestLocate_FirstStrategyWinShortCircuitsCascade(t *testing.T) {
	e := newTestEngine(t)
	var sweepRan bool
	e.pingProbe = func(_ context.Context, host string) (string, bool) {
		assert.Equal(t, "rcc-server.local", host)
		return "192.168.1.50", true
	}
	e.localAddr = func() (string, bool) {
		sweepRan = true
		return "", false
	}

	ep, ok, err := e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.50", ep.Address)
	assert.Equal(t, domain.MethodPing, ep.Method)
	assert.Equal(t, 1883, ep.Port)
	assert.False(t, sweepRan, "subnet sweep must not run once an earlier strategy succeeded")
}

func TestLocate_PingLoopbackResponderRejected(t *testing.T) {
	e := newTestEngine(t)
	e.pingProbe = func(context.Context, string) (string, bool) { return "127.0.0.1", true }
	e.lookupHost = func(context.Context, string) ([]string, error) { return []string{"192.168.1.9"}, nil }

	ep, ok, err := e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.9", ep.Address)
	assert.Equal(t, domain.MethodNameResolution, ep.Method)
}

func TestLocate_NeighborTableNeedsPortConfirmation(t *testing.T) {
	e := newTestEngine(t)
	e.neighborTable = func(context.Context) ([]neighborEntry, error) {
		return []neighborEntry{
			{ip: "192.168.1.20", mac: "aa:bb:cc:dd:ee:ff"}, // wrong vendor
			{ip: "192.168.1.30", mac: "b8:27:eb:01:02:03"}, // unreachable
			{ip: "192.168.1.40", mac: "dc:a6:32:04:05:06"},
		}, nil
	}
	e.dial = func(addr string, port int, _ time.Duration) bool {
		return addr == "192.168.1.40" && port == 1883
	}

	ep, ok, err := e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.40", ep.Address)
	assert.Equal(t, domain.MethodNeighborTable, ep.Method)
}

func TestLocate_CachesLastSuccessfulMethod(t *testing.T) {
	e := newTestEngine(t)
	var listens int
	e.serviceListen = func(context.Context) (domain.Endpoint, bool) {
		listens++
		return domain.Endpoint{Address: "192.168.1.77", Port: 1883, Method: domain.MethodServiceListen}, true
	}
	var pings int
	e.pingProbe = func(context.Context, string) (string, bool) {
		pings++
		return "", false
	}

	_, ok, err := e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, pings)

	// Second lookup goes straight to the cached strategy.
	_, ok, err = e.Locate(context.Background(), "rcc-server")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, pings, "earlier strategies should be skipped on the cached path")
	assert.Equal(t, 2, listens)
}

func TestResolveByIdentity_MACMatchWinsOverName(t *testing.T) {
	e := newTestEngine(t)
	e.neighborTable = func(context.Context) ([]neighborEntry, error) {
		return []neighborEntry{{ip: "192.168.1.88", mac: "A8:03:2A:BE:54:DC"}}, nil
	}
	e.pingProbe = func(context.Context, string) (string, bool) {
		t.Fatal("name probe must not run when the MAC matched")
		return "", false
	}

	ip, ok := e.ResolveByIdentity(context.Background(), "RCC-Device-001", "A8032ABE54DC")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.88", ip)
}

func TestResolveByIdentity_FallsBackToNameStrategies(t *testing.T) {
	e := newTestEngine(t)
	e.pingProbe = func(_ context.Context, host string) (string, bool) {
		assert.Equal(t, "RCC-Device-002.local", host)
		return "192.168.1.99", true
	}

	ip, ok := e.ResolveByIdentity(context.Background(), "RCC-Device-002", "A8032ABE54DC")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.99", ip)
}

func TestResolveByIdentity_Miss(t *testing.T) {
	e := newTestEngine(t)
	_, ok := e.ResolveByIdentity(context.Background(), "RCC-Device-003", "")
	assert.False(t, ok)
}

func TestVerifyReachable(t *testing.T) {
	e := newTestEngine(t)
	e.dial = func(addr string, port int, _ time.Duration) bool {
		return addr == "10.0.0.5" && port == 1883
	}
	assert.True(t, e.VerifyReachable("10.0.0.5", 1883))
	assert.False(t, e.VerifyReachable("10.0.0.6", 1883))
}

func TestUsableAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"192.168.1.10", true},
		{"10.1.2.3", true},
		{"127.0.0.1", false},
		{"169.254.10.20", false},
		{"0.0.0.0", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usableAddr(tt.addr), tt.addr)
	}
}

func TestParseNeighborTable(t *testing.T) {
	unix := `? (192.168.1.1) at 11:22:33:44:55:66 [ether] on wlan0
? (192.168.1.50) at b8:27:eb:aa:bb:cc [ether] on wlan0
? (192.168.1.60) at <incomplete> on wlan0`
	entries := parseNeighborTable(unix)
	require.Len(t, entries, 2)
	assert.Equal(t, neighborEntry{ip: "192.168.1.1", mac: "11:22:33:44:55:66"}, entries[0])
	assert.Equal(t, neighborEntry{ip: "192.168.1.50", mac: "b8:27:eb:aa:bb:cc"}, entries[1])

	windows := `Interface: 192.168.1.10 --- 0xb
  Internet Address      Physical Address      Type
  192.168.1.1           11-22-33-44-55-66     dynamic
  192.168.1.50          b8-27-eb-aa-bb-cc     dynamic`
	entries = parseNeighborTable(windows)
	require.Len(t, entries, 2)
	assert.Equal(t, "192.168.1.50", entries[1].ip)
	assert.Equal(t, "b8-27-eb-aa-bb-cc", entries[1].mac)
}

func TestNormalizeMAC(t *testing.T) {
	assert.Equal(t, "b827ebaabbcc", normalizeMAC("B8:27:EB:AA:BB:CC"))
	assert.Equal(t, "b827ebaabbcc", normalizeMAC("b8-27-eb-aa-bb-cc"))
	assert.Equal(t, "b827ebaabbcc", normalizeMAC("B827EBAABBCC"))
}
