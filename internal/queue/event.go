// Package queue defines request lifecycle events and moves them over the
// message broker.
package queue

import "github.com/iliyamo/repairdesk/internal/model"

// Event types carried in RequestEvent.Type.
const (
	EventRequestCreated = "request.created"
	EventStatusChanged  = "request.status_changed"
)

// RequestEvent is published after a request is created or changes status.
// It carries enough of the request for consumers to notify the client
// without querying the database.
type RequestEvent struct {
	Type        string `json:"type"`
	RequestID   int64  `json:"request_id"`
	DeviceType  string `json:"device_type"`
	DeviceModel string `json:"device_model"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	OldStatus   string `json:"old_status,omitempty"`
	Status      string `json:"status"`
	MasterName  string `json:"master_name,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}

// PickupReady reports whether the event moved a request into
// ReadyForPickup.
func (e RequestEvent) PickupReady() bool {
	return e.Type == EventStatusChanged && e.Status == model.StatusReadyForPickup
}
