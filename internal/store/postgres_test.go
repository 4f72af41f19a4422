package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eunej/CleanField/internal/model"
	"github.com/eunej/CleanField/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_GetClaimHistory(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()
	claimedAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM claim_history WHERE farm_id").
		WithArgs("farm1").
		WillReturnRows(sqlmock.NewRows([]string{"farm_id", "last_claim_at", "last_claim_year", "version"}).
			AddRow("farm1", claimedAt, 2026, 3))

	h, err := s.GetClaimHistory(ctx, "farm1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Version)
	assert.Equal(t, 2026, h.LastClaimYear)
	require.NotNil(t, h.LastClaimAt)
	assert.True(t, h.LastClaimAt.Equal(claimedAt))

	mock.ExpectQuery("SELECT (.+) FROM claim_history WHERE farm_id").
		WithArgs("farm2").
		WillReturnRows(sqlmock.NewRows([]string{"farm_id", "last_claim_at", "last_claim_year", "version"}))

	h, err = s.GetClaimHistory(ctx, "farm2")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimHistory{FarmID: "farm2"}, h)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitFirstClaim(t *testing.T) {
	s, mock := newMockPostgres(t)
	p := testutil.NewPaymentFixture().Build()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO claim_history").
		WithArgs("farm1", sqlmock.AnyArg(), int64(2026), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CommitClaim(context.Background(), 0, testutil.HistoryFor(p), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitNextClaim(t *testing.T) {
	s, mock := newMockPostgres(t)
	p := testutil.NewPaymentFixture().Build()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE claim_history").
		WithArgs("farm1", sqlmock.AnyArg(), int64(2026), int64(3), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CommitClaim(context.Background(), 2, testutil.HistoryFor(p), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitConflict(t *testing.T) {
	tests := []struct {
		name     string
		version  int64
		stmt     string
		affected int64
	}{
		{"already claimed", 0, "INSERT INTO claim_history", 0},
		{"stale version", 1, "UPDATE claim_history", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockPostgres(t)
			p := testutil.NewPaymentFixture().Build()

			mock.ExpectBegin()
			mock.ExpectExec(tt.stmt).WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectRollback()

			err := s.CommitClaim(context.Background(), tt.version, testutil.HistoryFor(p), p)
			assert.ErrorIs(t, err, ErrClaimConflict)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_ListPayments(t *testing.T) {
	s, mock := newMockPostgres(t)
	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	columns := []string{"id", "farm_id", "wallet_address", "amount_primary", "primary_currency",
		"amount_secondary", "secondary_currency", "settlement_ref", "status", "attestation_id",
		"proof_hash", "year", "failure_reason", "created_at", "completed_at"}

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE farm_id = (.+) ORDER BY created_at DESC LIMIT").
		WithArgs("farm1", int64(10)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("pay_2", "farm1", "0x12", "3825", "USDC", "127500", "THB", "0xabc", "completed", "att_1", "0xdef", 2026, "", created, created).
			AddRow("pay_1", "farm1", "0x12", "3825", "USDC", "127500", "THB", "", "failed", "", "", 2026, "relayer down", created.Add(-time.Hour), nil))

	payments, err := s.ListPayments(context.Background(), "farm1", 10)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "pay_2", payments[0].ID)
	require.NotNil(t, payments[0].CompletedAt)
	assert.Nil(t, payments[1].CompletedAt)
	assert.Equal(t, "relayer down", payments[1].FailureReason)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetAndSchema(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS claim_history").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("TRUNCATE claim_history, payments").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.Reset(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
