package events

import "time"

// Event envelope for all events
type Envelope struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SchemaVersion  string         `json:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	FarmID         string         `json:"farm_id,omitempty"`
	Data           map[string]any `json:"data"`
}

// Event type constants
const (
	// Attestation events
	EventAttestationCreated = "attestation.created"

	// Claim events
	EventClaimCompleted = "claim.completed"
	EventClaimFailed    = "claim.failed"
	EventClaimRejected  = "claim.rejected"
)
