// Package mqtt implements the BrokerVerifier port: a passive listener
// that joins the broker, asks devices to announce themselves and
// reports who answered.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// Topics the devices publish on. The wildcard set covers both the
// legacy shellies hierarchy and per-device prefixes.
var listenTopics = map[string]byte{
	"shellies/#":   0,
	"+/online":     0,
	"+/announce":   0,
	"+/events/rpc": 0,
	"+/status/sys": 0,
}

// announceTopic is where a broadcast announce request goes.
const announceTopic = "shellies/command"

// Verifier connects to the broker with the same credentials the devices
// were given and listens for their announcements.
type Verifier struct {
	host     string
	port     int
	username string
	password string
	log      ports.Logger

	// newClient is a seam for tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewVerifier creates a verifier for the given broker.
func NewVerifier(host string, port int, username, password string, log ports.Logger) *Verifier {
	return &Verifier{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		log:       log,
		newClient: pahomqtt.NewClient,
	}
}

// Listen implements ports.BrokerVerifier. It subscribes, requests an
// announce broadcast and collects answers until the window closes or
// the context is cancelled.
func (v *Verifier) Listen(ctx context.Context, window time.Duration) ([]ports.AnnouncedDevice, error) {
	col := newCollector()

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", v.host, v.port)).
		SetClientID("rcc-verify-" + uuid.NewString()[:8]).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false).
		SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
			col.observe(msg.Topic(), msg.Payload())
		})
	if v.username != "" {
		opts.SetUsername(v.username).SetPassword(v.password)
	}

	client := v.newClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(15*time.Second) || tok.Error() != nil {
		return nil, fmt.Errorf("%w: broker %s:%d: %v", domain.ErrConnectionFailed, v.host, v.port, tok.Error())
	}
	defer client.Disconnect(250)

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		col.observe(msg.Topic(), msg.Payload())
	}
	if tok := client.SubscribeMultiple(listenTopics, handler); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		return nil, fmt.Errorf("subscribe: %w", tok.Error())
	}

	if tok := client.Publish(announceTopic, 0, false, "announce"); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		v.log.Warn("announce request failed", ports.Err(tok.Error()))
	}

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	devices := col.snapshot()
	v.log.Info("broker listen window closed",
		ports.Int("devices", len(devices)),
		ports.Duration("window", window))
	return devices, nil
}
