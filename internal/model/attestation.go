package model

import "time"

// AttestationData is the attested claim about a farm's burning status
type AttestationData struct {
	FarmID            string   `json:"farm_id"`
	GistdaID          string   `json:"gistda_id"`
	NoBurningDetected bool     `json:"no_burning_detected"`
	HotspotCount      int      `json:"hotspot_count"`
	CheckDate         string   `json:"check_date"` // RFC 3339, UTC
	Location          Location `json:"location"`
	TemplateID        string   `json:"template_id"`
}

// Proof binds the attestation data to the attestor
type Proof struct {
	Hash              string `json:"hash"`      // 0x + 64 hex
	Signature         string `json:"signature"` // hex Ed25519 signature
	AttestorPublicKey string `json:"attestor_public_key,omitempty"`
}

// Attestation is a verifiable statement that a farm had no burning as of Timestamp
type Attestation struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Success   bool            `json:"success"`
	Requester string          `json:"requester"`
	AppID     string          `json:"app_id"`
	Data      AttestationData `json:"data"`
	Proof     Proof           `json:"proof"`
	Error     string          `json:"error,omitempty"`
}

// VerificationResult is the outcome of checking an attestation
type VerificationResult struct {
	Verified      bool      `json:"verified"`
	Reason        string    `json:"reason,omitempty"`
	AttestationID string    `json:"attestation_id,omitempty"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// OnChainProof is the compact attestation form handed to a settlement executor
type OnChainProof struct {
	FarmID    string `json:"farm_id"`
	ProofHash string `json:"proof_hash"`
	NoBurning bool   `json:"no_burning"`
	Timestamp int64  `json:"timestamp"` // unix millis
	Signature string `json:"signature"`
}
