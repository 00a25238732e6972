package stores

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/record"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func newTestPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("GOVERIFY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOVERIFY_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := MigratePostgres(ctx, pool); err != nil {
		t.Fatalf("MigratePostgres: %v", err)
	}
	return pool
}

func TestPostgresRecordStoreLifecycle(t *testing.T) {
	pool := newTestPostgres(t)
	store := NewPostgresRecordStore(pool)
	ctx := context.Background()

	recipient := uuid.NewString() + "@x.com"
	older := newRecord(uuid.NewString(), storeNow)
	older.Recipient = recipient
	newer := newRecord(uuid.NewString(), storeNow)
	newer.Recipient = recipient

	for _, rec := range []*record.Record{older, newer} {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	latest, err := store.Latest(ctx, recipient, record.PurposePasswordReset)
	if err != nil || latest.ID != newer.ID {
		t.Fatalf("Latest = %+v %v, want %s", latest, err, newer.ID)
	}

	if n, err := store.IncrementAttempts(ctx, newer.ID, 5); err != nil || n != 1 {
		t.Fatalf("IncrementAttempts: %d %v", n, err)
	}
	if err := store.MarkUsed(ctx, newer.ID, storeNow); !errors.Is(err, record.ErrConflict) {
		t.Fatalf("MarkUsed before verify: %v", err)
	}
	if _, err := store.MarkVerified(ctx, newer.ID, storeNow.Add(time.Second), 5); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if err := store.MarkUsed(ctx, newer.ID, storeNow.Add(2*time.Second)); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if err := store.MarkUsed(ctx, newer.ID, storeNow.Add(3*time.Second)); !errors.Is(err, record.ErrConflict) {
		t.Fatalf("second MarkUsed: %v", err)
	}
	if _, err := store.Get(ctx, uuid.NewString()); !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func TestPostgresAccountStoreCompareAndSwap(t *testing.T) {
	pool := newTestPostgres(t)
	accounts := NewPostgresAccountStore(pool)
	ctx := context.Background()

	row := AccountRow{UserID: uuid.NewString(), Recipient: uuid.NewString() + "@x.com", CredentialHash: "abc"}
	if err := accounts.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := accounts.UpdateCredential(ctx, row.UserID, "abc", "xyz"); err != nil {
		t.Fatalf("UpdateCredential: %v", err)
	}
	if err := accounts.UpdateCredential(ctx, row.UserID, "abc", "def"); !errors.Is(err, ErrCredentialConflict) {
		t.Fatalf("stale swap must conflict, got %v", err)
	}
	got, err := accounts.FindByRecipient(ctx, row.Recipient)
	if err != nil || got.CredentialHash != "xyz" {
		t.Fatalf("FindByRecipient: %+v %v", got, err)
	}
	if _, err := accounts.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
