package mqtt

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rcc-labs/rcc/internal/ports"
)

// factoryID matches the id a device ships with: app name plus the
// hardware address, e.g. "shellyplus1-a8032abe54dc". A renamed device
// announces under its assigned name instead.
var factoryID = regexp.MustCompile(`^[a-z0-9]+-[0-9a-f]{12}$`)

// collector merges announcements heard on different topics into one
// device set. A device can be heard several times under different
// identities (factory id before rename, assigned name after), so
// entries are keyed by hardware address when one is known and the
// richer identity wins.
type collector struct {
	mu      sync.Mutex
	devices map[string]*ports.AnnouncedDevice
	aliases map[string]string // announced id → map key
}

func newCollector() *collector {
	return &collector{
		devices: map[string]*ports.AnnouncedDevice{},
		aliases: map[string]string{},
	}
}

// announcement is the JSON body of an announce or status message.
type announcement struct {
	ID    string `json:"id"`
	MAC   string `json:"mac"`
	IP    string `json:"ip"`
	Model string `json:"model"`
	Src   string `json:"src"`
}

// observe ingests one message. Unknown topics and malformed payloads
// are ignored; the listener is passive and lossy by nature.
func (c *collector) observe(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	last := parts[len(parts)-1]

	switch {
	case last == "announce":
		var a announcement
		if err := json.Unmarshal(payload, &a); err != nil || a.ID == "" {
			return
		}
		c.add(ports.AnnouncedDevice{ID: a.ID, MAC: a.MAC, IP: a.IP, Model: a.Model})

	case last == "online" && len(parts) == 2:
		if string(payload) == "true" && parts[0] != "" {
			c.add(ports.AnnouncedDevice{ID: parts[0]})
		}

	case last == "rpc" && len(parts) >= 2 && parts[len(parts)-2] == "events":
		var a announcement
		if err := json.Unmarshal(payload, &a); err != nil || a.Src == "" {
			return
		}
		c.add(ports.AnnouncedDevice{ID: a.Src})
	}
}

func (c *collector) add(d ports.AnnouncedDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(d.MAC))
	if key == "" {
		if k, ok := c.aliases[d.ID]; ok {
			key = k
		} else {
			key = "id:" + d.ID
		}
	} else if k, ok := c.aliases[d.ID]; ok && k != key {
		// The device was first heard without a MAC. Fold that entry in.
		if old := c.devices[k]; old != nil {
			mergeDevice(&d, old)
			delete(c.devices, k)
		}
	}

	cur := c.devices[key]
	if cur == nil {
		copied := d
		c.devices[key] = &copied
	} else {
		mergeDevice(cur, &d)
	}
	c.aliases[d.ID] = key
}

// mergeDevice fills dst's gaps from src and upgrades a factory id to an
// assigned name when one is heard.
func mergeDevice(dst, src *ports.AnnouncedDevice) {
	if dst.MAC == "" {
		dst.MAC = src.MAC
	}
	if dst.IP == "" {
		dst.IP = src.IP
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
	if src.ID != "" && (dst.ID == "" || (factoryID.MatchString(dst.ID) && !factoryID.MatchString(src.ID))) {
		dst.ID = src.ID
	}
}

// snapshot returns the devices heard so far, ordered by id.
func (c *collector) snapshot() []ports.AnnouncedDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.AnnouncedDevice, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
