package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eunej/CleanField/internal/model"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS claim_history (
	farm_id TEXT PRIMARY KEY,
	last_claim_at TIMESTAMPTZ,
	last_claim_year INTEGER NOT NULL DEFAULT 0,
	version BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	farm_id TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	amount_primary TEXT NOT NULL,
	primary_currency TEXT NOT NULL,
	amount_secondary TEXT NOT NULL,
	secondary_currency TEXT NOT NULL,
	settlement_ref TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	attestation_id TEXT NOT NULL DEFAULT '',
	proof_hash TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS payments_farm_created_idx ON payments (farm_id, created_at DESC);
`

const paymentColumns = `id, farm_id, wallet_address, amount_primary, primary_currency, amount_secondary, secondary_currency, settlement_ref, status, attestation_id, proof_hash, year, failure_reason, created_at, completed_at`

// PostgresStore implements ClaimStore on database/sql with the lib/pq driver
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool for dsn and checks it is reachable
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) GetClaimHistory(ctx context.Context, farmID string) (model.ClaimHistory, error) {
	query := `SELECT farm_id, last_claim_at, last_claim_year, version FROM claim_history WHERE farm_id = $1`

	var h model.ClaimHistory
	var lastClaimAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, farmID).Scan(&h.FarmID, &lastClaimAt, &h.LastClaimYear, &h.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ClaimHistory{FarmID: farmID}, nil
		}
		return model.ClaimHistory{}, err
	}
	if lastClaimAt.Valid {
		t := lastClaimAt.Time.UTC()
		h.LastClaimAt = &t
	}
	return h, nil
}

// CommitClaim advances the history only where the stored version still matches
// and inserts the payment in the same transaction
func (s *PostgresStore) CommitClaim(ctx context.Context, expectedVersion int64, history model.ClaimHistory, payment model.PaymentRecord) error {
	if err := validateCommit(history, payment); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE claim_history SET last_claim_at = $2, last_claim_year = $3, version = $4
		WHERE farm_id = $1 AND version = $5
	`
	if expectedVersion == 0 {
		query = `
		INSERT INTO claim_history (farm_id, last_claim_at, last_claim_year, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (farm_id) DO NOTHING
	`
	}
	args := []any{history.FarmID, nullTime(history.LastClaimAt), history.LastClaimYear, expectedVersion + 1}
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save claim history: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrClaimConflict
	}

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendPayment(ctx context.Context, payment model.PaymentRecord) error {
	if err := validatePayment(payment); err != nil {
		return err
	}
	return insertPayment(ctx, s.db, payment)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPayment(ctx context.Context, db execer, p model.PaymentRecord) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.FarmID, p.WalletAddress, p.AmountPrimary, p.PrimaryCurrency, p.AmountSecondary, p.SecondaryCurrency,
		p.SettlementRef, p.Status, p.AttestationID, p.ProofHash, p.Year, p.FailureReason, p.CreatedAt, nullTime(p.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPayments(ctx context.Context, farmID string, limit int) ([]model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE farm_id = $1 ORDER BY created_at DESC`
	args := []any{farmID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryPayments(ctx, query, args...)
}

func (s *PostgresStore) ListAllPayments(ctx context.Context, limit int) ([]model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryPayments(ctx, query, args...)
}

func (s *PostgresStore) queryPayments(ctx context.Context, query string, args ...any) ([]model.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]model.PaymentRecord, 0)
	for rows.Next() {
		var p model.PaymentRecord
		var completedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.FarmID, &p.WalletAddress, &p.AmountPrimary, &p.PrimaryCurrency,
			&p.AmountSecondary, &p.SecondaryCurrency, &p.SettlementRef, &p.Status, &p.AttestationID,
			&p.ProofHash, &p.Year, &p.FailureReason, &p.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			p.CompletedAt = &t
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE claim_history, payments`)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
