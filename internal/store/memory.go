package store

import (
	"context"
	"sort"
	"sync"

	"github.com/eunej/CleanField/internal/model"
)

// MemoryStore implements ClaimStore using in-memory storage
type MemoryStore struct {
	mu        sync.RWMutex
	histories map[string]model.ClaimHistory
	payments  []model.PaymentRecord
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories: make(map[string]model.ClaimHistory),
		payments:  make([]model.PaymentRecord, 0),
	}
}

func (s *MemoryStore) GetClaimHistory(ctx context.Context, farmID string) (model.ClaimHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[farmID]
	if !ok {
		return model.ClaimHistory{FarmID: farmID}, nil
	}
	return h, nil
}

func (s *MemoryStore) CommitClaim(ctx context.Context, expectedVersion int64, history model.ClaimHistory, payment model.PaymentRecord) error {
	if err := validateCommit(history, payment); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.histories[history.FarmID].Version != expectedVersion {
		return ErrClaimConflict
	}
	history.Version = expectedVersion + 1
	s.histories[history.FarmID] = history
	s.payments = append(s.payments, payment)
	return nil
}

func (s *MemoryStore) AppendPayment(ctx context.Context, payment model.PaymentRecord) error {
	if err := validatePayment(payment); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payment)
	return nil
}

func (s *MemoryStore) ListPayments(ctx context.Context, farmID string, limit int) ([]model.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.PaymentRecord, 0)
	for _, p := range s.payments {
		if p.FarmID == farmID {
			result = append(result, p)
		}
	}
	return newestFirst(result, limit), nil
}

func (s *MemoryStore) ListAllPayments(ctx context.Context, limit int) ([]model.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.PaymentRecord, len(s.payments))
	copy(result, s.payments)
	return newestFirst(result, limit), nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[string]model.ClaimHistory)
	s.payments = make([]model.PaymentRecord, 0)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func newestFirst(payments []model.PaymentRecord, limit int) []model.PaymentRecord {
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments
}
