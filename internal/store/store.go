package store

import (
	"context"
	"errors"

	"github.com/eunej/CleanField/internal/model"
)

var (
	// ErrClaimConflict means the claim history changed since it was read
	ErrClaimConflict = errors.New("claim history version conflict")
	ErrInvalidRecord = errors.New("invalid payment record")
)

// ClaimStore persists claim history and payment records
type ClaimStore interface {
	// GetClaimHistory returns the zero history (version 0) for a farm that never claimed
	GetClaimHistory(ctx context.Context, farmID string) (model.ClaimHistory, error)

	// CommitClaim stores history as version expectedVersion+1 together with a
	// completed payment. Both are written or neither is. Returns
	// ErrClaimConflict if the stored version is not expectedVersion.
	CommitClaim(ctx context.Context, expectedVersion int64, history model.ClaimHistory, payment model.PaymentRecord) error

	// AppendPayment records an attempt that did not change claim history
	AppendPayment(ctx context.Context, payment model.PaymentRecord) error

	// ListPayments returns a farm's payments, newest first. limit <= 0 means all.
	ListPayments(ctx context.Context, farmID string, limit int) ([]model.PaymentRecord, error)
	ListAllPayments(ctx context.Context, limit int) ([]model.PaymentRecord, error)

	// Reset clears all claim state
	Reset(ctx context.Context) error

	Close() error
}

func validatePayment(p model.PaymentRecord) error {
	switch {
	case p.ID == "":
		return errors.Join(ErrInvalidRecord, errors.New("id is required"))
	case p.FarmID == "":
		return errors.Join(ErrInvalidRecord, errors.New("farm_id is required"))
	}
	return nil
}

func validateCommit(history model.ClaimHistory, payment model.PaymentRecord) error {
	if err := validatePayment(payment); err != nil {
		return err
	}
	if history.FarmID != payment.FarmID {
		return errors.Join(ErrInvalidRecord, errors.New("history and payment farm differ"))
	}
	if payment.Status != model.PaymentCompleted {
		return errors.Join(ErrInvalidRecord, errors.New("committed payment must be completed"))
	}
	return nil
}
