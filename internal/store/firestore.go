package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/eunej/CleanField/internal/model"
	"google.golang.org/api/iterator"
)

type FirestoreStore struct {
	client    *firestore.Client
	histories string
	payments  string
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{
		client:    client,
		histories: "claim_history",
		payments:  "payments",
	}, nil
}

func (s *FirestoreStore) GetClaimHistory(ctx context.Context, farmID string) (model.ClaimHistory, error) {
	docs, err := s.client.GetAll(ctx, []*firestore.DocumentRef{s.client.Collection(s.histories).Doc(farmID)})
	if err != nil {
		return model.ClaimHistory{}, fmt.Errorf("get claim history: %w", err)
	}
	return decodeHistory(docs[0], farmID)
}

// CommitClaim reads the history and writes both documents in one transaction
func (s *FirestoreStore) CommitClaim(ctx context.Context, expectedVersion int64, history model.ClaimHistory, payment model.PaymentRecord) error {
	if err := validateCommit(history, payment); err != nil {
		return err
	}
	historyRef := s.client.Collection(s.histories).Doc(history.FarmID)
	paymentRef := s.client.Collection(s.payments).Doc(payment.ID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.GetAll([]*firestore.DocumentRef{historyRef})
		if err != nil {
			return fmt.Errorf("get claim history: %w", err)
		}
		current, err := decodeHistory(docs[0], history.FarmID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrClaimConflict
		}

		history.Version = expectedVersion + 1
		if err := tx.Set(historyRef, history); err != nil {
			return fmt.Errorf("save claim history: %w", err)
		}
		if err := tx.Create(paymentRef, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		return nil
	})
}

func (s *FirestoreStore) AppendPayment(ctx context.Context, payment model.PaymentRecord) error {
	if err := validatePayment(payment); err != nil {
		return err
	}
	_, err := s.client.Collection(s.payments).Doc(payment.ID).Set(ctx, payment)
	if err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListPayments(ctx context.Context, farmID string, limit int) ([]model.PaymentRecord, error) {
	query := s.client.Collection(s.payments).
		Where("farm_id", "==", farmID).
		OrderBy("created_at", firestore.Desc)
	return s.collectPayments(ctx, query, limit)
}

func (s *FirestoreStore) ListAllPayments(ctx context.Context, limit int) ([]model.PaymentRecord, error) {
	query := s.client.Collection(s.payments).OrderBy("created_at", firestore.Desc)
	return s.collectPayments(ctx, query, limit)
}

func (s *FirestoreStore) collectPayments(ctx context.Context, query firestore.Query, limit int) ([]model.PaymentRecord, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	payments := make([]model.PaymentRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate payments: %w", err)
		}

		var p model.PaymentRecord
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (s *FirestoreStore) Reset(ctx context.Context) error {
	for _, name := range []string{s.histories, s.payments} {
		iter := s.client.Collection(name).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return fmt.Errorf("iterate %s: %w", name, err)
			}
			if _, err := doc.Ref.Delete(ctx); err != nil {
				iter.Stop()
				return fmt.Errorf("delete %s/%s: %w", name, doc.Ref.ID, err)
			}
		}
		iter.Stop()
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func decodeHistory(doc *firestore.DocumentSnapshot, farmID string) (model.ClaimHistory, error) {
	if !doc.Exists() {
		return model.ClaimHistory{FarmID: farmID}, nil
	}
	var h model.ClaimHistory
	if err := doc.DataTo(&h); err != nil {
		return model.ClaimHistory{}, fmt.Errorf("decode claim history: %w", err)
	}
	return h, nil
}
