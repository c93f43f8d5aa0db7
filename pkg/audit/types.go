package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeUserProvisioned     EventType = "user.provisioned"
	EventTypeUserProvisionFailed EventType = "user.provision_failed"
	EventTypeUserCompensated     EventType = "user.compensated"
	EventTypeUserOrphaned        EventType = "user.orphaned"
	EventTypeAuthzDenied         EventType = "authz.denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is one entry of the provisioning audit trail. Passwords are never
// recorded.
type Event struct {
	Type      EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`
	Time      time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	CallerID  string      `json:"caller_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Email     string      `json:"email,omitempty"`
	Role      string      `json:"role,omitempty"`
	Message   string      `json:"message,omitempty"`
}
