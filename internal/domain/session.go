package domain

import "time"

// Session is the durable record of one provisioning batch. It holds the
// broker coordinates and one record per candidate, appended in batch
// order. Sessions must never contain credentials: usernames and
// passwords live only in the runtime configuration.
type Session struct {
	SessionID   string                `json:"session_id"`
	BrokerHost  string                `json:"broker_host"`
	BrokerPort  int                   `json:"broker_port"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Devices     []*ProvisioningRecord `json:"devices"`
}

// NewSession starts a session record for the given broker endpoint.
func NewSession(id, brokerHost string, brokerPort int) *Session {
	return &Session{
		SessionID:  id,
		BrokerHost: brokerHost,
		BrokerPort: brokerPort,
		StartedAt:  time.Now(),
		Devices:    []*ProvisioningRecord{},
	}
}

// Append adds a finished device record to the session.
func (s *Session) Append(r *ProvisioningRecord) {
	s.Devices = append(s.Devices, r)
}

// Complete stamps the session as finished.
func (s *Session) Complete() {
	now := time.Now()
	s.CompletedAt = &now
}
