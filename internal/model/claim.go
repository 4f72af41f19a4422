package model

import "time"

// Payment status values
const (
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentPending   = "pending"
)

// Claim result status values
const (
	ClaimCompleted  = "completed"
	ClaimFailed     = "failed"
	ClaimIneligible = "ineligible"
)

// Eligibility states
const (
	StateNeverClaimed    = "NEVER_CLAIMED"
	StateClaimedThisYear = "CLAIMED_THIS_YEAR"
	StateClaimWindowOpen = "CLAIM_WINDOW_OPEN"
)

// Ineligibility codes
const (
	CodeEligible           = "ELIGIBLE"
	CodeBurningDetected    = "BURNING_DETECTED"
	CodeProofNotVerified   = "PROOF_NOT_VERIFIED"
	CodeAlreadyClaimed     = "ALREADY_CLAIMED"
	CodeIntervalNotElapsed = "INTERVAL_NOT_ELAPSED"
)

// ClaimHistory is the most recent successful claim of a farm.
// Version increases on every committed claim and guards concurrent writers.
type ClaimHistory struct {
	FarmID        string     `json:"farm_id" bson:"_id" firestore:"farm_id"`
	LastClaimAt   *time.Time `json:"last_claim_at,omitempty" bson:"last_claim_at,omitempty" firestore:"last_claim_at,omitempty"`
	LastClaimYear int        `json:"last_claim_year,omitempty" bson:"last_claim_year" firestore:"last_claim_year"`
	Version       int64      `json:"version" bson:"version" firestore:"version"`
}

// HasClaimed reports whether the farm has ever completed a claim
func (h ClaimHistory) HasClaimed() bool {
	return h.LastClaimAt != nil && h.LastClaimYear > 0
}

// PaymentRecord is an immutable record of one claim attempt
type PaymentRecord struct {
	ID                string     `json:"id" bson:"_id" firestore:"id"`
	FarmID            string     `json:"farm_id" bson:"farm_id" firestore:"farm_id"`
	WalletAddress     string     `json:"wallet_address" bson:"wallet_address" firestore:"wallet_address"`
	AmountPrimary     string     `json:"amount_primary" bson:"amount_primary" firestore:"amount_primary"`       // Decimal as string
	PrimaryCurrency   string     `json:"primary_currency" bson:"primary_currency" firestore:"primary_currency"` // USDC
	AmountSecondary   string     `json:"amount_secondary" bson:"amount_secondary" firestore:"amount_secondary"` // Decimal as string
	SecondaryCurrency string     `json:"secondary_currency" bson:"secondary_currency" firestore:"secondary_currency"`
	SettlementRef     string     `json:"settlement_ref,omitempty" bson:"settlement_ref,omitempty" firestore:"settlement_ref,omitempty"`
	Status            string     `json:"status" bson:"status" firestore:"status"` // completed|failed|pending
	AttestationID     string     `json:"attestation_id,omitempty" bson:"attestation_id,omitempty" firestore:"attestation_id,omitempty"`
	ProofHash         string     `json:"proof_hash,omitempty" bson:"proof_hash,omitempty" firestore:"proof_hash,omitempty"`
	Year              int        `json:"year" bson:"year" firestore:"year"`
	FailureReason     string     `json:"failure_reason,omitempty" bson:"failure_reason,omitempty" firestore:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at" firestore:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty" firestore:"completed_at,omitempty"`
}

// Money is an amount in a single currency
type Money struct {
	Amount   string `json:"amount"` // Decimal as string
	Currency string `json:"currency"`
}

// RewardRates are the per-hectare constants used for an estimate
type RewardRates struct {
	PrimaryPerHectare   string `json:"primary_per_hectare"`
	SecondaryPerHectare string `json:"secondary_per_hectare"`
	ConversionRate      string `json:"conversion_rate"` // secondary units per primary unit
}

// RewardEstimate is a re-derivable reward computation for a farm area
type RewardEstimate struct {
	AreaHectares float64     `json:"area_hectares"`
	Primary      Money       `json:"primary"`
	Secondary    Money       `json:"secondary"`
	Rates        RewardRates `json:"rates"`
}

// EligibilityResult is the decision of the eligibility engine
type EligibilityResult struct {
	Eligible           bool       `json:"eligible"`
	State              string     `json:"state"`
	Code               string     `json:"code"`
	Reason             string     `json:"reason,omitempty"`
	NoBurningDetected  bool       `json:"no_burning_detected"`
	ProofVerified      bool       `json:"proof_verified"`
	LastClaimDate      *time.Time `json:"last_claim_date,omitempty"`
	NextClaimDate      *time.Time `json:"next_claim_date,omitempty"`
	NextEligibleYear   int        `json:"next_eligible_year,omitempty"`
	DaysUntilNextClaim int        `json:"days_until_next_claim,omitempty"`
}

// ClaimRequest asks the claim processor to pay a farm's reward
type ClaimRequest struct {
	FarmID            string    `json:"farm_id"`
	WalletAddress     string    `json:"wallet_address"`
	AttestationID     string    `json:"attestation_id,omitempty"`
	ProofHash         string    `json:"proof_hash,omitempty"`
	NoBurningDetected bool      `json:"no_burning_detected"`
	ProofVerified     bool      `json:"proof_verified"`
	Timestamp         time.Time `json:"timestamp,omitempty"`
}

// ClaimResult is the outcome of a claim attempt
type ClaimResult struct {
	Success       bool              `json:"success"`
	FarmID        string            `json:"farm_id"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	Status        string            `json:"status"` // completed|failed|ineligible
	Amount        *RewardEstimate   `json:"amount,omitempty"`
	SettlementRef string            `json:"settlement_ref,omitempty"`
	PaymentID     string            `json:"payment_id,omitempty"`
	Message       string            `json:"message"`
	ClaimedAt     time.Time         `json:"claimed_at"`
	Eligibility   EligibilityResult `json:"eligibility"`
}

// FarmPaymentHistory summarizes all claim attempts of a farm
type FarmPaymentHistory struct {
	FarmID                string          `json:"farm_id"`
	TotalClaimedPrimary   string          `json:"total_claimed_primary"`
	TotalClaimedSecondary string          `json:"total_claimed_secondary"`
	TotalPayments         int             `json:"total_payments"`
	LastClaimDate         *time.Time      `json:"last_claim_date,omitempty"`
	Payments              []PaymentRecord `json:"payments"`
}

// DistributionStats aggregates completed payments across all farms
type DistributionStats struct {
	TotalPrimary   string `json:"total_primary"`
	TotalSecondary string `json:"total_secondary"`
	TotalClaims    int    `json:"total_claims"`
	FailedClaims   int    `json:"failed_claims"`
	PendingClaims  int    `json:"pending_claims"`
	UniqueFarms    int    `json:"unique_farms"`
}
