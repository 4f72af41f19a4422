package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eunej/CleanField/internal/eligibility"
	"github.com/eunej/CleanField/internal/events"
	"github.com/eunej/CleanField/internal/farmlock"
	"github.com/eunej/CleanField/internal/model"
	"github.com/eunej/CleanField/internal/reward"
	"github.com/eunej/CleanField/internal/settlement"
	"github.com/eunej/CleanField/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("invalid claim request")

// DefaultLockWait bounds how long a claim waits for another claim on the same farm
const DefaultLockWait = 10 * time.Second

// FarmLookup resolves registered farms
type FarmLookup interface {
	Get(id string) (model.Farm, error)
}

// Deps are the collaborators of a Processor. Events may be nil.
type Deps struct {
	Farms    FarmLookup
	Store    store.ClaimStore
	Locker   farmlock.Locker
	Engine   *eligibility.Engine
	Rewards  *reward.Calculator
	Settler  settlement.Executor
	Events   *events.Publisher
	LockWait time.Duration
}

// Processor turns eligible claims into settled, recorded payments.
// Claims for one farm are serialized through the Locker.
type Processor struct {
	farms    FarmLookup
	store    store.ClaimStore
	locker   farmlock.Locker
	engine   *eligibility.Engine
	rewards  *reward.Calculator
	settler  settlement.Executor
	events   *events.Publisher
	lockWait time.Duration
	now      func() time.Time
}

func New(d Deps) *Processor {
	if d.LockWait <= 0 {
		d.LockWait = DefaultLockWait
	}
	return &Processor{
		farms:    d.Farms,
		store:    d.Store,
		locker:   d.Locker,
		engine:   d.Engine,
		rewards:  d.Rewards,
		settler:  d.Settler,
		events:   d.Events,
		lockWait: d.LockWait,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// ProcessClaim re-checks eligibility, settles the reward and records it.
// Business rejections and settlement failures are reported in the result;
// the error is reserved for invalid input and infrastructure failures.
// The reward is always paid to the wallet the farm is registered with.
func (p *Processor) ProcessClaim(ctx context.Context, req model.ClaimRequest) (model.ClaimResult, error) {
	if req.FarmID == "" {
		return model.ClaimResult{}, fmt.Errorf("%w: farm_id is required", ErrInvalidRequest)
	}
	farm, err := p.farms.Get(req.FarmID)
	if err != nil {
		return model.ClaimResult{}, err
	}
	if farm.WalletAddress == "" {
		return model.ClaimResult{}, fmt.Errorf("%w: farm %s has no registered wallet", ErrInvalidRequest, farm.ID)
	}
	if req.WalletAddress != "" && !strings.EqualFold(req.WalletAddress, farm.WalletAddress) {
		return model.ClaimResult{}, fmt.Errorf("%w: wallet_address does not match the farm's registered wallet", ErrInvalidRequest)
	}
	if farm.AreaHectares <= 0 {
		return model.ClaimResult{}, fmt.Errorf("%w: farm %s has non-positive area", ErrInvalidRequest, farm.ID)
	}

	lockCtx, cancel := context.WithTimeout(ctx, p.lockWait)
	release, err := p.locker.Acquire(lockCtx, farm.ID)
	cancel()
	if err != nil {
		return model.ClaimResult{}, fmt.Errorf("lock farm %s: %w", farm.ID, err)
	}

	result, ev, err := func() (model.ClaimResult, *outcome, error) {
		defer release()
		return p.claimLocked(ctx, farm, req)
	}()
	if ev != nil {
		p.publish(ctx, ev.eventType, ev.data)
	}
	return result, err
}

// outcome is the event announcing a claim, published once the farm lock is released
type outcome struct {
	eventType string
	data      map[string]any
}

func (p *Processor) claimLocked(ctx context.Context, farm model.Farm, req model.ClaimRequest) (model.ClaimResult, *outcome, error) {
	wallet := farm.WalletAddress
	now := p.now()
	history, err := p.store.GetClaimHistory(ctx, farm.ID)
	if err != nil {
		return model.ClaimResult{}, nil, fmt.Errorf("load claim history: %w", err)
	}

	elig := p.engine.Evaluate(eligibility.Input{
		FarmID:        farm.ID,
		Clean:         req.NoBurningDetected,
		ProofVerified: req.ProofVerified,
		History:       history,
		Now:           now,
	})
	result := model.ClaimResult{
		FarmID:        farm.ID,
		WalletAddress: wallet,
		ClaimedAt:     now,
		Eligibility:   elig,
	}

	if !elig.Eligible {
		result.Status = model.ClaimIneligible
		result.Message = elig.Reason
		slog.InfoContext(ctx, "claim_rejected", "farm_id", farm.ID, "code", elig.Code, "reason", elig.Reason)
		return result, &outcome{events.EventClaimRejected, map[string]any{
			"farm_id": farm.ID,
			"code":    elig.Code,
			"reason":  elig.Reason,
		}}, nil
	}

	estimate, err := p.rewards.Estimate(farm.AreaHectares)
	if err != nil {
		return model.ClaimResult{}, nil, fmt.Errorf("farm %s: %w", farm.ID, err)
	}
	result.Amount = &estimate

	amount, err := decimal.NewFromString(estimate.Primary.Amount)
	if err != nil {
		return model.ClaimResult{}, nil, fmt.Errorf("parse reward amount: %w", err)
	}
	year := p.engine.Year(now)
	payment := model.PaymentRecord{
		ID:                uuid.NewString(),
		FarmID:            farm.ID,
		WalletAddress:     wallet,
		AmountPrimary:     estimate.Primary.Amount,
		PrimaryCurrency:   estimate.Primary.Currency,
		AmountSecondary:   estimate.Secondary.Amount,
		SecondaryCurrency: estimate.Secondary.Currency,
		AttestationID:     req.AttestationID,
		ProofHash:         req.ProofHash,
		Year:              year,
		CreatedAt:         now,
	}

	receipt, err := p.settler.Settle(ctx, settlement.Instruction{
		FarmID:         farm.ID,
		Recipient:      wallet,
		Amount:         amount,
		Currency:       estimate.Primary.Currency,
		ProofReference: req.ProofHash,
		Year:           year,
	})
	if err != nil {
		failed, ev := p.settlementFailed(ctx, result, payment, err)
		return failed, ev, nil
	}

	completedAt := p.now()
	payment.Status = model.PaymentCompleted
	payment.SettlementRef = receipt.TxHash
	payment.CompletedAt = &completedAt

	claimedAt := now
	next := model.ClaimHistory{FarmID: farm.ID, LastClaimAt: &claimedAt, LastClaimYear: year}
	if err := p.store.CommitClaim(ctx, history.Version, next, payment); err != nil {
		failed, ev := p.commitFailed(ctx, result, payment, err)
		return failed, ev, nil
	}

	result.Success = true
	result.Status = model.ClaimCompleted
	result.SettlementRef = receipt.TxHash
	result.PaymentID = payment.ID
	result.Message = fmt.Sprintf("reward of %s %s sent", estimate.Primary.Amount, estimate.Primary.Currency)
	result.Eligibility.State = model.StateClaimedThisYear
	result.Eligibility.LastClaimDate = &claimedAt
	result.Eligibility.NextClaimDate = p.engine.NextClaimDate(next)

	slog.InfoContext(ctx, "claim_completed",
		"farm_id", farm.ID,
		"payment_id", payment.ID,
		"amount", estimate.Primary.Amount,
		"currency", estimate.Primary.Currency,
		"settlement_ref", receipt.TxHash,
		"year", year,
	)
	return result, &outcome{events.EventClaimCompleted, map[string]any{
		"farm_id":          farm.ID,
		"payment_id":       payment.ID,
		"wallet_address":   wallet,
		"amount_primary":   estimate.Primary.Amount,
		"amount_secondary": estimate.Secondary.Amount,
		"settlement_ref":   receipt.TxHash,
		"year":             year,
	}}, nil
}

// settlementFailed records the failed attempt and leaves claim history untouched
func (p *Processor) settlementFailed(ctx context.Context, result model.ClaimResult, payment model.PaymentRecord, cause error) (model.ClaimResult, *outcome) {
	payment.Status = model.PaymentFailed
	payment.FailureReason = cause.Error()
	if err := p.store.AppendPayment(ctx, payment); err != nil {
		slog.ErrorContext(ctx, "payment_record_failed", "farm_id", payment.FarmID, "error", err)
	}

	slog.WarnContext(ctx, "claim_settlement_failed", "farm_id", payment.FarmID, "error", cause)

	result.Status = model.ClaimFailed
	result.PaymentID = payment.ID
	result.Message = "settlement failed: " + cause.Error()
	return result, &outcome{events.EventClaimFailed, map[string]any{
		"farm_id": payment.FarmID,
		"reason":  cause.Error(),
	}}
}

// commitFailed handles a settled transfer that could not be recorded. The
// payment is kept as pending so it can be reconciled by hand.
func (p *Processor) commitFailed(ctx context.Context, result model.ClaimResult, payment model.PaymentRecord, cause error) (model.ClaimResult, *outcome) {
	payment.Status = model.PaymentPending
	payment.CompletedAt = nil
	payment.FailureReason = "settled but not recorded: " + cause.Error()
	if err := p.store.AppendPayment(ctx, payment); err != nil {
		slog.ErrorContext(ctx, "payment_record_failed", "farm_id", payment.FarmID, "error", err)
	}

	slog.ErrorContext(ctx, "claim_commit_failed",
		"farm_id", payment.FarmID,
		"payment_id", payment.ID,
		"settlement_ref", payment.SettlementRef,
		"error", cause,
	)

	result.Status = model.ClaimFailed
	result.PaymentID = payment.ID
	result.SettlementRef = payment.SettlementRef
	result.Message = "reward settled but claim could not be recorded; payment pending reconciliation"
	return result, &outcome{events.EventClaimFailed, map[string]any{
		"farm_id":        payment.FarmID,
		"settlement_ref": payment.SettlementRef,
		"reason":         payment.FailureReason,
	}}
}

// CheckEligibility evaluates a farm without claiming
func (p *Processor) CheckEligibility(ctx context.Context, farmID string, clean, proofVerified bool) (model.EligibilityResult, error) {
	if _, err := p.farms.Get(farmID); err != nil {
		return model.EligibilityResult{}, err
	}
	history, err := p.store.GetClaimHistory(ctx, farmID)
	if err != nil {
		return model.EligibilityResult{}, fmt.Errorf("load claim history: %w", err)
	}
	return p.engine.Evaluate(eligibility.Input{
		FarmID:        farmID,
		Clean:         clean,
		ProofVerified: proofVerified,
		History:       history,
		Now:           p.now(),
	}), nil
}

// History returns every claim attempt of a farm with totals of completed payments
func (p *Processor) History(ctx context.Context, farmID string) (model.FarmPaymentHistory, error) {
	if _, err := p.farms.Get(farmID); err != nil {
		return model.FarmPaymentHistory{}, err
	}
	payments, err := p.store.ListPayments(ctx, farmID, 0)
	if err != nil {
		return model.FarmPaymentHistory{}, fmt.Errorf("list payments: %w", err)
	}
	history, err := p.store.GetClaimHistory(ctx, farmID)
	if err != nil {
		return model.FarmPaymentHistory{}, fmt.Errorf("load claim history: %w", err)
	}

	totals := summarize(payments)
	return model.FarmPaymentHistory{
		FarmID:                farmID,
		TotalClaimedPrimary:   totals.primary.String(),
		TotalClaimedSecondary: totals.secondary.String(),
		TotalPayments:         totals.completed,
		LastClaimDate:         history.LastClaimAt,
		Payments:              payments,
	}, nil
}

// Stats aggregates payments across all farms
func (p *Processor) Stats(ctx context.Context) (model.DistributionStats, error) {
	payments, err := p.store.ListAllPayments(ctx, 0)
	if err != nil {
		return model.DistributionStats{}, fmt.Errorf("list payments: %w", err)
	}

	totals := summarize(payments)
	return model.DistributionStats{
		TotalPrimary:   totals.primary.String(),
		TotalSecondary: totals.secondary.String(),
		TotalClaims:    totals.completed,
		FailedClaims:   totals.failed,
		PendingClaims:  totals.pending,
		UniqueFarms:    len(totals.farms),
	}, nil
}

// Reset clears all claim state
func (p *Processor) Reset(ctx context.Context) error {
	return p.store.Reset(ctx)
}

type paymentTotals struct {
	primary, secondary         decimal.Decimal
	completed, failed, pending int
	farms                      map[string]struct{}
}

func summarize(payments []model.PaymentRecord) paymentTotals {
	t := paymentTotals{farms: make(map[string]struct{})}
	for _, pay := range payments {
		switch pay.Status {
		case model.PaymentCompleted:
			t.completed++
			t.farms[pay.FarmID] = struct{}{}
			if v, err := decimal.NewFromString(pay.AmountPrimary); err == nil {
				t.primary = t.primary.Add(v)
			}
			if v, err := decimal.NewFromString(pay.AmountSecondary); err == nil {
				t.secondary = t.secondary.Add(v)
			}
		case model.PaymentFailed:
			t.failed++
		case model.PaymentPending:
			t.pending++
		}
	}
	return t
}

func (p *Processor) publish(ctx context.Context, eventType string, data map[string]any) {
	if p.events == nil {
		return
	}
	p.events.Publish(ctx, eventType, data)
}
