package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

var fixtureSeq atomic.Int64

// PaymentFixture builds payment records for store and claim tests
type PaymentFixture struct {
	record model.PaymentRecord
}

// NewPaymentFixture returns a completed 25.5 ha payment for farm1
func NewPaymentFixture() PaymentFixture {
	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	return PaymentFixture{record: model.PaymentRecord{
		ID:                fmt.Sprintf("pay_test_%03d", fixtureSeq.Add(1)),
		FarmID:            "farm1",
		WalletAddress:     "0x1234567890123456789012345678901234567890",
		AmountPrimary:     "3825",
		PrimaryCurrency:   "USDC",
		AmountSecondary:   "127500",
		SecondaryCurrency: "THB",
		SettlementRef:     "0x" + fmt.Sprintf("%064x", 1),
		Status:            model.PaymentCompleted,
		Year:              2026,
		CreatedAt:         created,
		CompletedAt:       &created,
	}}
}

// WithID sets the payment ID
func (p PaymentFixture) WithID(id string) PaymentFixture {
	p.record.ID = id
	return p
}

// WithFarm sets the farm ID
func (p PaymentFixture) WithFarm(farmID string) PaymentFixture {
	p.record.FarmID = farmID
	return p
}

// WithCreatedAt sets creation and completion time
func (p PaymentFixture) WithCreatedAt(t time.Time) PaymentFixture {
	p.record.CreatedAt = t
	p.record.Year = t.Year()
	if p.record.CompletedAt != nil {
		p.record.CompletedAt = &t
	}
	return p
}

// Failed marks the payment as a failed settlement
func (p PaymentFixture) Failed(reason string) PaymentFixture {
	p.record.Status = model.PaymentFailed
	p.record.SettlementRef = ""
	p.record.FailureReason = reason
	p.record.CompletedAt = nil
	return p
}

// Build returns the record
func (p PaymentFixture) Build() model.PaymentRecord {
	return p.record
}

// HistoryFor returns the claim history a committed payment produces
func HistoryFor(p model.PaymentRecord) model.ClaimHistory {
	at := p.CreatedAt
	return model.ClaimHistory{
		FarmID:        p.FarmID,
		LastClaimAt:   &at,
		LastClaimYear: at.Year(),
	}
}
