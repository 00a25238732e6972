package stores

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goVerify/record"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PgxExecutor is the subset of *pgxpool.Pool and pgx.Tx used by the
// Postgres stores.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `id, recipient, purpose, user_id, code_hash, created_at, expires_at, attempts, verified_at, used_at`

// MigratePostgres creates the verification and account tables if missing.
func MigratePostgres(ctx context.Context, db PgxExecutor) error {
	for _, stmt := range strings.Split(postgresSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// PostgresRecordStore persists records in verification_records. Guards are
// expressed in the UPDATE's WHERE clause, so each conditional update is a
// single statement.
type PostgresRecordStore struct {
	db PgxExecutor
}

// NewPostgresRecordStore returns a store over db.
func NewPostgresRecordStore(db PgxExecutor) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// Create implements [record.Store].
func (s *PostgresRecordStore) Create(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("verification record id required")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO verification_records (id, recipient, purpose, user_id, code_hash, created_at, expires_at, attempts, verified_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Recipient, string(rec.Purpose), rec.UserID, rec.CodeHash,
		rec.CreatedAt, rec.ExpiresAt, rec.Attempts, rec.VerifiedAt, rec.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	return nil
}

// Latest implements [record.Store]. seq breaks ties between records created
// at the same instant.
func (s *PostgresRecordStore) Latest(ctx context.Context, recipient string, purpose record.Purpose) (*record.Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM verification_records
		WHERE recipient = $1 AND purpose = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`, recipient, string(purpose))
	return scanRecord(row)
}

// Get implements [record.Store].
func (s *PostgresRecordStore) Get(ctx context.Context, id string) (*record.Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM verification_records WHERE id = $1`, id)
	return scanRecord(row)
}

// IncrementAttempts implements [record.Store].
func (s *PostgresRecordStore) IncrementAttempts(ctx context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := s.db.QueryRow(ctx, `
		UPDATE verification_records
		SET attempts = attempts + 1
		WHERE id = $1 AND used_at IS NULL AND attempts < $2
		RETURNING attempts`, id, maxAttempts).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.guardFailure(ctx, id)
		}
		return 0, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	return attempts, nil
}

// MarkVerified implements [record.Store].
func (s *PostgresRecordStore) MarkVerified(ctx context.Context, id string, at time.Time, maxAttempts int) (time.Time, error) {
	var verifiedAt time.Time
	err := s.db.QueryRow(ctx, `
		UPDATE verification_records
		SET verified_at = COALESCE(verified_at, $2)
		WHERE id = $1 AND used_at IS NULL AND attempts < $3
		RETURNING verified_at`, id, at, maxAttempts).Scan(&verifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, s.guardFailure(ctx, id)
		}
		return time.Time{}, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	return verifiedAt.UTC(), nil
}

// MarkUsed implements [record.Store].
func (s *PostgresRecordStore) MarkUsed(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE verification_records
		SET used_at = $2
		WHERE id = $1 AND verified_at IS NOT NULL AND used_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardFailure(ctx, id)
	}
	return nil
}

// guardFailure distinguishes a missing row from a failed guard after an
// UPDATE matched nothing.
func (s *PostgresRecordStore) guardFailure(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM verification_records WHERE id = $1`, id).Scan(&one)
	switch {
	case err == nil:
		return record.ErrConflict
	case errors.Is(err, pgx.ErrNoRows):
		return record.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec     record.Record
		purpose string
	)
	err := row.Scan(
		&rec.ID, &rec.Recipient, &purpose, &rec.UserID, &rec.CodeHash,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.Attempts, &rec.VerifiedAt, &rec.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	rec.Purpose = record.Purpose(purpose)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	if rec.VerifiedAt != nil {
		v := rec.VerifiedAt.UTC()
		rec.VerifiedAt = &v
	}
	if rec.UsedAt != nil {
		u := rec.UsedAt.UTC()
		rec.UsedAt = &u
	}
	return &rec, nil
}
