// Package ports defines the interfaces that connect the provisioning
// core to infrastructure adapters.
//
// The core (internal/provisioner, internal/discovery) depends only on
// these interfaces. Adapters (internal/adapters/...) implement them
// with concrete mechanisms: OS WiFi tooling, the device HTTP RPC
// protocol, MQTT, the filesystem, zerolog.
//
// # Port interfaces
//
//   - [WiFiController]: scan, associate, disassociate
//   - [DeviceClient]: the per-device configuration protocol
//   - [BrokerVerifier]: passive announce listener for verification
//   - [SessionRepository]: checkpoint persistence
//   - [Observer]: step and device progress reporting
//   - [Logger]: structured logging abstraction
package ports
