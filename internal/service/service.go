package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eunej/CleanField/internal/attestation"
	"github.com/eunej/CleanField/internal/claim"
	"github.com/eunej/CleanField/internal/eligibility"
	"github.com/eunej/CleanField/internal/events"
	"github.com/eunej/CleanField/internal/farms"
	"github.com/eunej/CleanField/internal/hotspot"
	"github.com/eunej/CleanField/internal/model"
	"github.com/eunej/CleanField/internal/reward"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrAttestationFarm = errors.New("attestation belongs to a different farm")
	ErrEmptyBatch      = errors.New("no farms given")
)

// DefaultBatchWorkers bounds concurrent attestations in a batch
const DefaultBatchWorkers = 5

// Deps are the collaborators of a Service. Events may be nil.
type Deps struct {
	Farms    *farms.Registry
	Checker  *hotspot.Checker
	Builder  *attestation.Builder
	Verifier *attestation.Verifier
	Claims   *claim.Processor
	Rewards  *reward.Calculator
	Policy   eligibility.Policy
	Events   *events.Publisher

	BatchConcurrency   int
	RequireAttestation bool // ignore caller-asserted proof flags on claims
}

// Service wires detection, attestation and claims into the operations the API exposes
type Service struct {
	farms              *farms.Registry
	checker            *hotspot.Checker
	builder            *attestation.Builder
	verifier           *attestation.Verifier
	claims             *claim.Processor
	rewards            *reward.Calculator
	policy             eligibility.Policy
	events             *events.Publisher
	batchConcurrency   int
	requireAttestation bool
	now                func() time.Time
}

func New(d Deps) *Service {
	if d.BatchConcurrency <= 0 {
		d.BatchConcurrency = DefaultBatchWorkers
	}
	return &Service{
		farms:              d.Farms,
		checker:            d.Checker,
		builder:            d.Builder,
		verifier:           d.Verifier,
		claims:             d.Claims,
		rewards:            d.Rewards,
		policy:             d.Policy,
		events:             d.Events,
		batchConcurrency:   d.BatchConcurrency,
		requireAttestation: d.RequireAttestation,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListFarms() []model.Farm {
	return s.farms.List()
}

func (s *Service) GetFarm(farmID string) (model.Farm, error) {
	return s.farms.Get(farmID)
}

// VerifyFarm checks a farm for hotspots and previews the proof hash of a clean result
func (s *Service) VerifyFarm(ctx context.Context, farmID string) (FarmVerification, error) {
	farm, err := s.farms.Get(farmID)
	if err != nil {
		return FarmVerification{}, err
	}

	det := s.checker.Check(ctx, farm)
	out := FarmVerification{
		Farm:      farm,
		Detection: det,
		NoBurning: det.Available() && det.Clean,
	}
	if det.Available() {
		preview, err := s.builder.Build(det, subjectOf(farm, farm.WalletAddress), s.now())
		if err != nil {
			return FarmVerification{}, err
		}
		out.ProofHashPreview = preview.Proof.Hash
	}
	return out, nil
}

// AttestFarm checks a farm and returns a signed, verified attestation.
// An unavailable detection yields an unsuccessful attestation, not an error.
func (s *Service) AttestFarm(ctx context.Context, farmID, requester string) (AttestationOutcome, error) {
	farm, err := s.farms.Get(farmID)
	if err != nil {
		return AttestationOutcome{}, err
	}
	if requester == "" {
		requester = farm.WalletAddress
	}

	det := s.checker.Check(ctx, farm)
	att, err := s.builder.Build(det, subjectOf(farm, requester), s.now())
	if err != nil {
		return AttestationOutcome{}, fmt.Errorf("build attestation: %w", err)
	}

	out := AttestationOutcome{
		Attestation:  att,
		Verification: s.verifier.Verify(&att, s.now()),
	}
	if out.Verification.Verified {
		onChain := attestation.OnChainPayload(att)
		out.OnChain = &onChain
	}

	slog.InfoContext(ctx, "attestation_created",
		"farm_id", farm.ID,
		"attestation_id", att.ID,
		"success", att.Success,
		"no_burning", att.Data.NoBurningDetected,
		"hotspot_count", att.Data.HotspotCount,
	)
	s.publish(ctx, events.EventAttestationCreated, map[string]any{
		"farm_id":        farm.ID,
		"attestation_id": att.ID,
		"success":        att.Success,
		"no_burning":     att.Data.NoBurningDetected,
		"proof_hash":     att.Proof.Hash,
	})
	return out, nil
}

// BatchAttest attests many farms with bounded concurrency. Farms with recorded
// burning incidents are reported without querying the detection provider.
func (s *Service) BatchAttest(ctx context.Context, farmIDs []string, requester string) (BatchResult, error) {
	if len(farmIDs) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}

	items := make([]BatchItem, len(farmIDs))
	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, id := range farmIDs {
		g.Go(func() error {
			items[i] = s.attestOne(ctx, id, requester)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Results: items, CompletedAt: s.now()}
	result.Summary.Total = len(items)
	for _, item := range items {
		switch item.Status {
		case BatchAttested:
			result.Summary.Successful++
			if item.Attestation.Data.NoBurningDetected {
				result.Summary.Clean++
			} else {
				result.Summary.Burning++
			}
		case BatchBurningDetected:
			result.Summary.Burning++
		default:
			result.Summary.Failed++
		}
	}

	slog.InfoContext(ctx, "batch_attestation_completed",
		"total", result.Summary.Total,
		"successful", result.Summary.Successful,
		"clean", result.Summary.Clean,
		"burning", result.Summary.Burning,
		"failed", result.Summary.Failed,
	)
	return result, nil
}

func (s *Service) attestOne(ctx context.Context, farmID, requester string) BatchItem {
	item := BatchItem{FarmID: farmID}

	farm, err := s.farms.Get(farmID)
	if err != nil {
		item.Status = BatchFailed
		item.Error = err.Error()
		return item
	}
	if farm.HasBurning {
		item.Status = BatchBurningDetected
		item.Error = fmt.Sprintf("%d burning incidents on record", farm.BurningIncidents)
		return item
	}

	out, err := s.AttestFarm(ctx, farmID, requester)
	if err != nil {
		item.Status = BatchFailed
		item.Error = err.Error()
		return item
	}
	item.Attestation = &out.Attestation
	item.Verification = &out.Verification
	if !out.Attestation.Success {
		item.Status = BatchFailed
		item.Error = out.Attestation.Error
		return item
	}
	item.Status = BatchAttested
	return item
}

// VerifyAttestation checks an attestation presented by a client
func (s *Service) VerifyAttestation(ctx context.Context, att *model.Attestation) AttestationOutcome {
	out := AttestationOutcome{Verification: s.verifier.Verify(att, s.now())}
	if att != nil {
		out.Attestation = *att
		if out.Verification.Verified {
			onChain := attestation.OnChainPayload(*att)
			out.OnChain = &onChain
		}
	}
	slog.InfoContext(ctx, "attestation_verified",
		"attestation_id", out.Verification.AttestationID,
		"verified", out.Verification.Verified,
		"reason", out.Verification.Reason,
	)
	return out
}

// Claim processes a reward claim. A supplied attestation is verified first and
// its outcome replaces the caller's clean and proof flags.
func (s *Service) Claim(ctx context.Context, req model.ClaimRequest, att *model.Attestation) (model.ClaimResult, error) {
	if req.FarmID == "" {
		return model.ClaimResult{}, fmt.Errorf("%w: farm_id is required", ErrInvalidRequest)
	}

	switch {
	case att != nil:
		if att.Data.FarmID != req.FarmID {
			return model.ClaimResult{}, ErrAttestationFarm
		}
		v := s.verifier.Verify(att, s.now())
		req.ProofVerified = v.Verified
		req.NoBurningDetected = att.Success && att.Data.NoBurningDetected
		req.AttestationID = att.ID
		req.ProofHash = att.Proof.Hash
		if !v.Verified {
			slog.InfoContext(ctx, "claim_attestation_rejected", "farm_id", req.FarmID, "reason", v.Reason)
		}
	case s.requireAttestation:
		req.ProofVerified = false
	}

	return s.claims.ProcessClaim(ctx, req)
}

// ClaimStatus reports a farm's claim window and the reward it would receive
func (s *Service) ClaimStatus(ctx context.Context, farmID string) (ClaimStatus, error) {
	farm, err := s.farms.Get(farmID)
	if err != nil {
		return ClaimStatus{}, err
	}
	elig, err := s.claims.CheckEligibility(ctx, farm.ID, true, true)
	if err != nil {
		return ClaimStatus{}, err
	}
	estimate, err := s.rewards.Estimate(farm.AreaHectares)
	if err != nil {
		return ClaimStatus{}, err
	}
	return ClaimStatus{
		FarmID:      farm.ID,
		Eligibility: elig,
		Estimate:    estimate,
		Config:      s.PaymentConfig(),
	}, nil
}

// PaymentConfig returns the active reward configuration
func (s *Service) PaymentConfig() PaymentConfig {
	primary, secondary := s.rewards.Currencies()
	loc := s.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	return PaymentConfig{
		Rates:             s.rewards.Rates(),
		PrimaryCurrency:   primary,
		SecondaryCurrency: secondary,
		Policy:            s.policy.Mode,
		MinIntervalDays:   int(s.policy.MinInterval / (24 * time.Hour)),
		Timezone:          loc.String(),
	}
}

// EstimateReward computes the reward for an area
func (s *Service) EstimateReward(areaHectares float64) (model.RewardEstimate, error) {
	return s.rewards.Estimate(areaHectares)
}

// FarmHistory returns one farm's payment history
func (s *Service) FarmHistory(ctx context.Context, farmID string) (model.FarmPaymentHistory, error) {
	return s.claims.History(ctx, farmID)
}

// Distribution returns the payment history of every registered farm with totals
func (s *Service) Distribution(ctx context.Context) (DistributionReport, error) {
	list := s.farms.List()
	report := DistributionReport{Farms: make([]model.FarmPaymentHistory, 0, len(list))}
	for _, farm := range list {
		h, err := s.claims.History(ctx, farm.ID)
		if err != nil {
			return DistributionReport{}, err
		}
		report.Farms = append(report.Farms, h)
	}
	stats, err := s.claims.Stats(ctx)
	if err != nil {
		return DistributionReport{}, err
	}
	report.Stats = stats
	return report, nil
}

// Reset clears all claim state
func (s *Service) Reset(ctx context.Context) error {
	if err := s.claims.Reset(ctx); err != nil {
		return err
	}
	slog.WarnContext(ctx, "claim_state_reset")
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, eventType, data)
}

func subjectOf(farm model.Farm, requester string) attestation.Subject {
	return attestation.Subject{
		FarmID:    farm.ID,
		GistdaID:  farm.GistdaID,
		Location:  farm.Location,
		Requester: requester,
	}
}
