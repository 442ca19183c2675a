// Package deviceapi implements the DeviceClient port against the
// Gen2 HTTP JSON-RPC protocol the devices expose at their AP address.
package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// DefaultAPAddress is where a factory-default device answers once the
// operator has joined its AP.
const DefaultAPAddress = "192.168.33.1"

// Client speaks to one device at one address.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client bound to the given device address.
func New(address string, timeout time.Duration) *Client {
	return &Client{
		baseURL: "http://" + address,
		http:    &http.Client{Timeout: timeout},
	}
}

// NewFactory returns a DeviceClientFactory with a shared timeout.
func NewFactory(timeout time.Duration) ports.DeviceClientFactory {
	return func(address string) ports.DeviceClient {
		return New(address, timeout)
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcEnvelope struct {
	Error  *rpcError       `json:"error"`
	Result json.RawMessage `json:"result"`
}

// call issues one RPC. Requests with parameters POST a JSON body;
// parameterless methods use GET, matching the device's firmware.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	url := c.baseURL + "/rpc/" + method

	var req *http.Request
	var err error
	if params != nil {
		body, merr := json.Marshal(params)
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &domain.ProtocolError{Code: resp.StatusCode, Message: "http " + resp.Status}
	}

	var env rpcEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.ProtocolError{Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if env.Error != nil {
		return nil, &domain.ProtocolError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Result != nil {
		return env.Result, nil
	}
	return raw, nil
}

// classifyTransportError maps transport failures onto the domain
// taxonomy so the orchestrator can distinguish retryable kinds.
func classifyTransportError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
}

// GetDeviceInfo reads the device identity from the unauthenticated
// /shelly endpoint.
func (c *Client) GetDeviceInfo(ctx context.Context) (domain.DeviceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/shelly", nil)
	if err != nil {
		return domain.DeviceInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.DeviceInfo{}, classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return domain.DeviceInfo{}, &domain.ProtocolError{Code: resp.StatusCode, Message: "http " + resp.Status}
	}
	var info domain.DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.DeviceInfo{}, &domain.ProtocolError{Message: fmt.Sprintf("malformed device info: %v", err)}
	}
	return info, nil
}

// ConfigureBroker pushes MQTT settings. The topic prefix doubles as the
// device's identity on the broker.
func (c *Client) ConfigureBroker(ctx context.Context, s ports.BrokerSettings) error {
	// A disable call carries no host; the device expects an empty
	// server string, not ":0".
	server := ""
	if s.Host != "" {
		server = fmt.Sprintf("%s:%d", s.Host, s.Port)
	}
	cfg := map[string]interface{}{
		"enable": s.Enable,
		"server": server,
		"user":   s.Username,
		"pass":   s.Password,
	}
	if s.TopicPrefix != "" {
		cfg["topic_prefix"] = s.TopicPrefix
	}
	_, err := c.call(ctx, "MQTT.SetConfig", map[string]interface{}{"config": cfg})
	return err
}

// ConfigureNetwork pushes station credentials and, unless KeepLocalAP
// is set, disables the device's own AP in the same call.
func (c *Client) ConfigureNetwork(ctx context.Context, creds ports.NetworkCredentials) error {
	_, err := c.call(ctx, "WiFi.SetConfig", map[string]interface{}{
		"config": map[string]interface{}{
			"sta": map[string]interface{}{
				"ssid":     creds.SSID,
				"pass":     creds.Password,
				"enable":   true,
				"ipv4mode": "dhcp",
			},
			"ap": map[string]interface{}{
				"enable": creds.KeepLocalAP,
			},
		},
	})
	return err
}

// DisableCloud turns off the vendor cloud relay. Not all models ship
// the component, so a protocol error is success here.
func (c *Client) DisableCloud(ctx context.Context) error {
	_, err := c.call(ctx, "Cloud.SetConfig", map[string]interface{}{
		"config": map[string]interface{}{"enable": false},
	})
	var pe *domain.ProtocolError
	if errors.As(err, &pe) {
		return nil
	}
	return err
}

// SetName sets the device's friendly name.
func (c *Client) SetName(ctx context.Context, name string) error {
	_, err := c.call(ctx, "Sys.SetConfig", map[string]interface{}{
		"config": map[string]interface{}{
			"device": map[string]interface{}{"name": name},
		},
	})
	return err
}

// SetDiscoverable toggles the device's advertisement visibility.
func (c *Client) SetDiscoverable(ctx context.Context, discoverable bool) error {
	_, err := c.call(ctx, "Sys.SetConfig", map[string]interface{}{
		"config": map[string]interface{}{
			"device": map[string]interface{}{"discoverable": discoverable},
		},
	})
	return err
}

// Reboot restarts the device. The reply regularly times out while the
// link drops, which counts as success.
func (c *Client) Reboot(ctx context.Context) error {
	_, err := c.call(ctx, "Shelly.Reboot", nil)
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrConnectionFailed) {
		return nil
	}
	return err
}

// DisableLocalAP hides the device's own network.
func (c *Client) DisableLocalAP(ctx context.Context) error {
	_, err := c.call(ctx, "WiFi.SetConfig", map[string]interface{}{
		"config": map[string]interface{}{
			"ap": map[string]interface{}{"enable": false},
		},
	})
	return err
}

// FactoryReset wipes the device configuration.
func (c *Client) FactoryReset(ctx context.Context) error {
	_, err := c.call(ctx, "Shelly.FactoryReset", nil)
	return err
}
