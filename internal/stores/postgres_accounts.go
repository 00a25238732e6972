package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrCredentialConflict  = errors.New("credential changed concurrently")
	ErrAccountsUnavailable = errors.New("account store unavailable")
)

// AccountRow is one row of the accounts table.
type AccountRow struct {
	UserID         string
	Recipient      string
	CredentialHash string
}

// PostgresAccountStore reads and updates credentials in the accounts table.
type PostgresAccountStore struct {
	db PgxExecutor
}

func NewPostgresAccountStore(db PgxExecutor) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) FindByRecipient(ctx context.Context, recipient string) (AccountRow, error) {
	return s.scan(s.db.QueryRow(ctx,
		`SELECT user_id, recipient, credential_hash FROM accounts WHERE recipient = $1`, recipient))
}

func (s *PostgresAccountStore) FindByID(ctx context.Context, userID string) (AccountRow, error) {
	return s.scan(s.db.QueryRow(ctx,
		`SELECT user_id, recipient, credential_hash FROM accounts WHERE user_id = $1`, userID))
}

// UpdateCredential swaps the hash only if it still equals currentHash.
func (s *PostgresAccountStore) UpdateCredential(ctx context.Context, userID, currentHash, newHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET credential_hash = $3, updated_at = NOW()
		WHERE user_id = $1 AND credential_hash = $2`, userID, currentHash, newHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.FindByID(ctx, userID); err != nil {
			return err
		}
		return ErrCredentialConflict
	}
	return nil
}

// Upsert inserts or replaces an account row.
func (s *PostgresAccountStore) Upsert(ctx context.Context, row AccountRow) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (user_id, recipient, credential_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET recipient = EXCLUDED.recipient, credential_hash = EXCLUDED.credential_hash, updated_at = NOW()`,
		row.UserID, row.Recipient, row.CredentialHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
	}
	return nil
}

func (s *PostgresAccountStore) scan(row pgx.Row) (AccountRow, error) {
	var out AccountRow
	if err := row.Scan(&out.UserID, &out.Recipient, &out.CredentialHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRow{}, ErrAccountNotFound
		}
		return AccountRow{}, fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
	}
	return out, nil
}
