package settlement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MockExecutor settles instantly with a random transaction hash.
// Failures can be injected globally or per farm.
type MockExecutor struct {
	mu          sync.Mutex
	delay       time.Duration
	failAll     error
	failByFarm  map[string]error
	settlements []Instruction
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{failByFarm: make(map[string]error)}
}

// SetDelay makes every settlement take d
func (m *MockExecutor) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailWith makes every settlement fail with err. nil clears it.
func (m *MockExecutor) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// FailFarm makes settlements for farmID fail with err. nil clears it.
func (m *MockExecutor) FailFarm(farmID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failByFarm, farmID)
		return
	}
	m.failByFarm[farmID] = err
}

// Settlements returns the instructions settled successfully so far
func (m *MockExecutor) Settlements() []Instruction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Instruction, len(m.settlements))
	copy(out, m.settlements)
	return out
}

func (m *MockExecutor) Settle(ctx context.Context, in Instruction) (Receipt, error) {
	if err := in.Validate(); err != nil {
		return Receipt{}, err
	}

	m.mu.Lock()
	delay := m.delay
	failure := m.failAll
	if f, ok := m.failByFarm[in.FarmID]; ok {
		failure = f
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	if failure != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrSettlementFailed, failure)
	}

	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Receipt{}, fmt.Errorf("generate tx hash: %w", err)
	}
	receipt := Receipt{
		TxHash:    "0x" + hex.EncodeToString(b[:]),
		Status:    StatusConfirmed,
		SettledAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.settlements = append(m.settlements, in)
	m.mu.Unlock()

	slog.InfoContext(ctx, "mock_settlement",
		"farm_id", in.FarmID,
		"recipient", in.Recipient,
		"amount", in.Amount.String(),
		"currency", in.Currency,
		"tx_hash", receipt.TxHash,
	)
	return receipt, nil
}
