package audit

import "time"

// Actions recorded for registrations.
const (
	ActionRegistrationCreated  = "registration.created"
	ActionRegistrationsCleared = "registrations.cleared"
	ActionRegistrationsExport  = "registrations.exported"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Count     int       `json:"count,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
}
