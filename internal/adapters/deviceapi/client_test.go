package deviceapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
)

// newTestClient points a Client at a test server.
func newTestClient(ts *httptest.Server, timeout time.Duration) *Client {
	return &Client{
		baseURL: ts.URL,
		http:    &http.Client{Timeout: timeout},
	}
}

func TestGetDeviceInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shelly" {
			t.Errorf("path = %s, want /shelly", r.URL.Path)
		}
		io.WriteString(w, `{"id":"shellyplus1-a8032abe54dc","mac":"A8032ABE54DC","model":"SNSW-001X16EU","gen":2,"fw_id":"fw1","ver":"1.0.0","app":"Plus1"}`)
	}))
	defer ts.Close()

	info, err := newTestClient(ts, time.Second).GetDeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("GetDeviceInfo: %v", err)
	}
	if info.MAC != "A8032ABE54DC" {
		t.Errorf("MAC = %s, want A8032ABE54DC", info.MAC)
	}
	if got := info.FriendlyName(); got != "Shelly Plus 1" {
		t.Errorf("FriendlyName = %s, want Shelly Plus 1", got)
	}
}

func TestConfigureBroker_Payload(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc/MQTT.SetConfig" {
			t.Errorf("path = %s, want /rpc/MQTT.SetConfig", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		io.WriteString(w, `{"restart_required":false}`)
	}))
	defer ts.Close()

	err := newTestClient(ts, time.Second).ConfigureBroker(context.Background(), ports.BrokerSettings{
		Host:        "192.168.1.50",
		Port:        1883,
		Username:    "rcc",
		Password:    "secret",
		TopicPrefix: "RCC-Device-001",
		Enable:      true,
	})
	if err != nil {
		t.Fatalf("ConfigureBroker: %v", err)
	}

	cfg, ok := got["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("config missing in payload: %v", got)
	}
	if cfg["server"] != "192.168.1.50:1883" {
		t.Errorf("server = %v, want 192.168.1.50:1883", cfg["server"])
	}
	if cfg["topic_prefix"] != "RCC-Device-001" {
		t.Errorf("topic_prefix = %v, want RCC-Device-001", cfg["topic_prefix"])
	}
	if cfg["enable"] != true {
		t.Errorf("enable = %v, want true", cfg["enable"])
	}
}

func TestConfigureBroker_DisableSendsEmptyServer(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	err := newTestClient(ts, time.Second).ConfigureBroker(context.Background(), ports.BrokerSettings{
		Enable: false,
	})
	if err != nil {
		t.Fatalf("ConfigureBroker: %v", err)
	}

	cfg := got["config"].(map[string]interface{})
	if cfg["server"] != "" {
		t.Errorf("server = %q, want empty string", cfg["server"])
	}
	if cfg["enable"] != false {
		t.Errorf("enable = %v, want false", cfg["enable"])
	}
	if _, ok := cfg["topic_prefix"]; ok {
		t.Errorf("topic_prefix present in disable payload: %v", cfg)
	}
}

func TestConfigureNetwork_DisablesAPByDefault(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	err := newTestClient(ts, time.Second).ConfigureNetwork(context.Background(), ports.NetworkCredentials{
		SSID:     "HomeNet",
		Password: "wifi-secret",
	})
	if err != nil {
		t.Fatalf("ConfigureNetwork: %v", err)
	}

	cfg := got["config"].(map[string]interface{})
	ap := cfg["ap"].(map[string]interface{})
	if ap["enable"] != false {
		t.Errorf("ap.enable = %v, want false", ap["enable"])
	}
	sta := cfg["sta"].(map[string]interface{})
	if sta["ssid"] != "HomeNet" {
		t.Errorf("sta.ssid = %v, want HomeNet", sta["ssid"])
	}
}

func TestCall_RPCErrorBecomesProtocolError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":{"code":-103,"message":"invalid argument"}}`)
	}))
	defer ts.Close()

	err := newTestClient(ts, time.Second).SetName(context.Background(), "x")
	var pe *domain.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *domain.ProtocolError", err)
	}
	if pe.Code != -103 {
		t.Errorf("code = %d, want -103", pe.Code)
	}
	if !strings.Contains(pe.Message, "invalid argument") {
		t.Errorf("message = %q, want invalid argument", pe.Message)
	}
}

func TestCall_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listens anymore

	err := newTestClient(ts, time.Second).SetName(context.Background(), "x")
	if !errors.Is(err, domain.ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestCall_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	err := newTestClient(ts, 20*time.Millisecond).SetName(context.Background(), "x")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestReboot_TimeoutIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	if err := newTestClient(ts, 20*time.Millisecond).Reboot(context.Background()); err != nil {
		t.Fatalf("Reboot after timeout = %v, want nil", err)
	}
}

func TestDisableCloud_ProtocolErrorIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":{"code":404,"message":"no cloud component"}}`)
	}))
	defer ts.Close()

	if err := newTestClient(ts, time.Second).DisableCloud(context.Background()); err != nil {
		t.Fatalf("DisableCloud = %v, want nil", err)
	}
}
