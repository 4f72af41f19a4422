package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt status values
const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

var (
	ErrInvalidInstruction = errors.New("invalid settlement instruction")
	ErrSettlementFailed   = errors.New("settlement failed")
)

// Instruction describes one reward transfer
type Instruction struct {
	FarmID         string          `json:"farm_id"`
	Recipient      string          `json:"recipient"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ProofReference string          `json:"proof_reference,omitempty"`
	Year           int             `json:"year"`
}

// Validate checks the fields every executor relies on
func (i Instruction) Validate() error {
	switch {
	case i.FarmID == "":
		return errors.Join(ErrInvalidInstruction, errors.New("farm_id is required"))
	case i.Recipient == "":
		return errors.Join(ErrInvalidInstruction, errors.New("recipient is required"))
	case !i.Amount.IsPositive():
		return errors.Join(ErrInvalidInstruction, errors.New("amount must be positive"))
	case i.Currency == "":
		return errors.Join(ErrInvalidInstruction, errors.New("currency is required"))
	}
	return nil
}

// Receipt is the executor's acknowledgement of a transfer
type Receipt struct {
	TxHash    string    `json:"tx_hash"`
	Status    string    `json:"status"`
	SettledAt time.Time `json:"settled_at"`
}

// Executor transfers rewards to a farm's wallet
type Executor interface {
	Settle(ctx context.Context, in Instruction) (Receipt, error)
}
