package ports

import (
	"context"
	"time"
)

// AnnouncedDevice is one device heard announcing itself on the broker.
type AnnouncedDevice struct {
	ID    string
	MAC   string
	IP    string
	Model string
}

// BrokerVerifier passively listens on the broker for device
// announcements. Best-effort: it is used by the verification workflow,
// not by the provisioning path itself.
type BrokerVerifier interface {
	// Listen collects announcements for the given window and returns
	// the de-duplicated set heard.
	Listen(ctx context.Context, window time.Duration) ([]AnnouncedDevice, error)
}
