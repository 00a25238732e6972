package accounts

import (
	"context"
	"errors"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/internal/stores"
)

// Postgres adapts the accounts table to goVerify.CredentialProvider.
type Postgres struct {
	store *stores.PostgresAccountStore
}

func NewPostgres(db stores.PgxExecutor) *Postgres {
	return &Postgres{store: stores.NewPostgresAccountStore(db)}
}

func (p *Postgres) FindByRecipient(ctx context.Context, recipient string) (goVerify.Account, error) {
	row, err := p.store.FindByRecipient(ctx, recipient)
	if err != nil {
		return goVerify.Account{}, mapError(err)
	}
	return goVerify.Account(row), nil
}

func (p *Postgres) FindByID(ctx context.Context, userID string) (goVerify.Account, error) {
	row, err := p.store.FindByID(ctx, userID)
	if err != nil {
		return goVerify.Account{}, mapError(err)
	}
	return goVerify.Account(row), nil
}

func (p *Postgres) UpdateCredential(ctx context.Context, userID, currentHash, newHash string) error {
	return mapError(p.store.UpdateCredential(ctx, userID, currentHash, newHash))
}

// Upsert seeds or replaces an account.
func (p *Postgres) Upsert(ctx context.Context, acc goVerify.Account) error {
	return p.store.Upsert(ctx, stores.AccountRow(acc))
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrAccountNotFound):
		return goVerify.ErrAccountNotFound
	case errors.Is(err, stores.ErrCredentialConflict):
		return goVerify.ErrCredentialConflict
	default:
		return err
	}
}
