// Package domain contains the core entities and value objects for rcc.
//
// This is the innermost layer: it has no dependencies on infrastructure
// concerns (HTTP, WiFi tooling, MQTT, logging) and holds only the data
// shapes and rules the rest of the tool agrees on.
//
// # Entities
//
//   - [CandidateNetwork]: a factory-default device access point seen in a scan
//   - [Endpoint]: a located service endpoint (broker or device)
//   - [ProvisioningRecord]: the per-device outcome of one provisioning run
//   - [Session]: a batch run, persisted as a checkpoint after every device
//   - [ProvisionState]: the closed provisioning state machine
//
// A record is owned by the orchestrator while non-terminal and must be
// treated as immutable once its state is terminal.
package domain
