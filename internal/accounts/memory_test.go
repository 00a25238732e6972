package accounts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
accounts:
  - user_id: u1
    recipient: Alice@Example.com
    credential_hash: h1
  - user_id: u2
    recipient: bob@example.com
`), 0o600))

	m, err := LoadFile(p)
	require.NoError(t, err)

	acc, err := m.FindByRecipient(context.Background(), " alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", acc.UserID)
	require.Equal(t, "h1", acc.CredentialHash)

	acc, err = m.FindByID(context.Background(), "u2")
	require.NoError(t, err)
	require.Empty(t, acc.CredentialHash)

	_, err = m.FindByRecipient(context.Background(), "carol@example.com")
	require.ErrorIs(t, err, goVerify.ErrAccountNotFound)
}

func TestNewMemoryRejectsDuplicates(t *testing.T) {
	_, err := NewMemory(
		goVerify.Account{UserID: "u1", Recipient: "a@example.com"},
		goVerify.Account{UserID: "u2", Recipient: "A@example.com"},
	)
	require.ErrorContains(t, err, "duplicate recipient")

	_, err = NewMemory(goVerify.Account{UserID: "u1"})
	require.Error(t, err)
}

func TestUpdateCredentialCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(goVerify.Account{UserID: "u1", Recipient: "a@example.com", CredentialHash: "old"})
	require.NoError(t, err)

	require.ErrorIs(t, m.UpdateCredential(ctx, "u1", "stale", "new"), goVerify.ErrCredentialConflict)
	require.NoError(t, m.UpdateCredential(ctx, "u1", "old", "new"))
	require.ErrorIs(t, m.UpdateCredential(ctx, "u1", "old", "newer"), goVerify.ErrCredentialConflict)
	require.ErrorIs(t, m.UpdateCredential(ctx, "nobody", "", "x"), goVerify.ErrAccountNotFound)

	acc, err := m.FindByRecipient(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "new", acc.CredentialHash)
}

func TestEachOrdered(t *testing.T) {
	m, err := NewMemory(
		goVerify.Account{UserID: "u2", Recipient: "b@example.com"},
		goVerify.Account{UserID: "u1", Recipient: "a@example.com"},
	)
	require.NoError(t, err)

	var ids []string
	require.NoError(t, m.Each(func(acc goVerify.Account) error {
		ids = append(ids, acc.UserID)
		return nil
	}))
	require.Equal(t, []string{"u1", "u2"}, ids)
}
