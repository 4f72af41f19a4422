package service

import (
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// Batch item statuses
const (
	BatchAttested        = "ATTESTED"
	BatchBurningDetected = "BURNING_DETECTED"
	BatchFailed          = "FAILED"
)

// FarmVerification is a detection check plus the proof hash it would attest to
type FarmVerification struct {
	Farm             model.Farm            `json:"farm"`
	Detection        model.DetectionResult `json:"detection"`
	NoBurning        bool                  `json:"no_burning_detected"`
	ProofHashPreview string                `json:"proof_hash_preview,omitempty"`
}

// AttestationOutcome is a freshly built attestation and its verification
type AttestationOutcome struct {
	Attestation  model.Attestation        `json:"attestation"`
	Verification model.VerificationResult `json:"verification"`
	OnChain      *model.OnChainProof      `json:"on_chain,omitempty"`
}

// BatchItem is the outcome for one farm of a batch attestation
type BatchItem struct {
	FarmID       string                    `json:"farm_id"`
	Status       string                    `json:"status"`
	Attestation  *model.Attestation        `json:"attestation,omitempty"`
	Verification *model.VerificationResult `json:"verification,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Clean      int `json:"clean"`
	Burning    int `json:"burning"`
	Failed     int `json:"failed"`
}

type BatchResult struct {
	Summary     BatchSummary `json:"summary"`
	Results     []BatchItem  `json:"results"`
	CompletedAt time.Time    `json:"completed_at"`
}

// PaymentConfig is the public reward configuration
type PaymentConfig struct {
	Rates             model.RewardRates `json:"rates"`
	PrimaryCurrency   string            `json:"primary_currency"`
	SecondaryCurrency string            `json:"secondary_currency"`
	Policy            string            `json:"eligibility_policy"`
	MinIntervalDays   int               `json:"min_interval_days,omitempty"`
	Timezone          string            `json:"timezone"`
}

// ClaimStatus is a farm's claim window, assuming a clean verified attestation
type ClaimStatus struct {
	FarmID      string                  `json:"farm_id"`
	Eligibility model.EligibilityResult `json:"eligibility"`
	Estimate    model.RewardEstimate    `json:"estimate"`
	Config      PaymentConfig           `json:"config"`
}

// DistributionReport is the payment history of every farm
type DistributionReport struct {
	Farms []model.FarmPaymentHistory `json:"farms"`
	Stats model.DistributionStats    `json:"stats"`
}
