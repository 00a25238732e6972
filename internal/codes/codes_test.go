package codes

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/record"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "pepper-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIssuer(t *testing.T, opts ...Option) (*Issuer, *stores.RedisRecordStore, *clock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{now: time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)}
	store := stores.NewRedisRecordStore(rdb, "codes-test", time.Hour)
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(store, Config{HashCost: bcrypt.MinCost}, opts...), store, clk
}

func fixedCode() Option {
	return WithRandom(bytes.NewReader(bytes.Repeat([]byte{0x00, 0xBC, 0x55}, 8)))
}

func TestIssueStoresOnlyTheHash(t *testing.T) {
	issuer, store, clk := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, "a@x.com", record.PurposePasswordReset, "user-1", testSecret)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Code != "048213" {
		t.Fatalf("code = %q", issued.Code)
	}

	rec, err := store.Get(ctx, issued.Record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.CodeHash == "" || bytes.Contains([]byte(rec.CodeHash), []byte(issued.Code)) {
		t.Fatalf("code hash leaks plaintext: %q", rec.CodeHash)
	}
	if !rec.ExpiresAt.Equal(clk.Now().Add(DefaultTTL)) || rec.Attempts != 0 || rec.VerifiedAt != nil || rec.UsedAt != nil {
		t.Fatalf("unexpected fresh record %+v", rec)
	}
	if rec.UserID != "user-1" {
		t.Fatalf("user id not stored")
	}
}

func TestVerifyCorrectCodeDoesNotConsume(t *testing.T) {
	issuer, store, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, "a@x.com", record.PurposePasswordReset, "user-1", testSecret)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, err := issuer.Verify(ctx, "a@x.com", record.PurposePasswordReset, "048213", testSecret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rec.VerifiedAt == nil || rec.UsedAt != nil || rec.ID != issued.Record.ID {
		t.Fatalf("unexpected verified record %+v", rec)
	}

	if err := store.MarkUsed(ctx, rec.ID, time.Now()); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposePasswordReset, "048213", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("used record must verify as Invalid, got %v", err)
	}
}

func TestVerifyAttemptCeiling(t *testing.T) {
	issuer, _, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "111111", testSecret); !errors.Is(err, outcome.ErrInvalid) {
			t.Fatalf("wrong guess %d: expected Invalid, got %v", i, err)
		}
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "048213", testSecret); !errors.Is(err, outcome.ErrTooManyAttempts) {
		t.Fatalf("sixth submission must be TooManyAttempts even when correct, got %v", err)
	}
}

func TestVerifyFreshIssueResetsBudget(t *testing.T) {
	issuer, _, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, _ = issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "999999", testSecret)
	}

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("re-Issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "048213", testSecret); err != nil {
		t.Fatalf("new record must be verifiable, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	issuer, _, clk := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(DefaultTTL)

	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "048213", testSecret); !errors.Is(err, outcome.ErrExpired) {
		t.Fatalf("expected Expired, got %v", err)
	}
}

func TestVerifyUnknownRecipientAndPurpose(t *testing.T) {
	issuer, _, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	if _, err := issuer.Verify(ctx, "nobody@x.com", record.PurposeSignIn, "048213", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("missing record must be Invalid, got %v", err)
	}

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposePasswordReset, "048213", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("sign-in code must not verify for reset, got %v", err)
	}
}

func TestVerifyMalformedCodeCountsAsWrongGuess(t *testing.T) {
	issuer, store, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "48213", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	rec, err := store.Get(ctx, issued.Record.ID)
	if err != nil || rec.Attempts != 1 {
		t.Fatalf("attempts = %d err=%v, want 1", rec.Attempts, err)
	}
}

func TestVerifyDifferentSecretFails(t *testing.T) {
	issuer, _, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "048213", "rotated"); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected Invalid under a different pepper, got %v", err)
	}
}

func TestMissingSecretIsMisconfigured(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", ""); !errors.Is(err, outcome.ErrMisconfigured) {
		t.Fatalf("Issue: expected Misconfigured, got %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "000000", ""); !errors.Is(err, outcome.ErrMisconfigured) {
		t.Fatalf("Verify: expected Misconfigured, got %v", err)
	}
}

func TestParallelLastGuessesCannotBothProceed(t *testing.T) {
	issuer, store, _ := newTestIssuer(t, fixedCode())
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 4; i++ {
		_, _ = issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "111111", testSecret)
	}

	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "222222", testSecret)
		}(i)
	}
	wg.Wait()

	rec, err := store.Get(ctx, issued.Record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Attempts != 5 {
		t.Fatalf("attempts = %d, want exactly 5", rec.Attempts)
	}
	invalid := 0
	for _, err := range results {
		switch {
		case errors.Is(err, outcome.ErrInvalid):
			invalid++
		case errors.Is(err, outcome.ErrTooManyAttempts):
		default:
			t.Fatalf("unexpected result %v", err)
		}
	}
	if invalid < 1 {
		t.Fatalf("one caller must have spent the last attempt")
	}
}

func countCompares(issuer *Issuer) *int {
	n := new(int)
	compare := issuer.compare
	issuer.compare = func(hash, password []byte) error {
		*n++
		return compare(hash, password)
	}
	return n
}

func TestEveryInvalidPaysOneCompare(t *testing.T) {
	issuer, store, clk := newTestIssuer(t, fixedCode())
	compares := countCompares(issuer)
	ctx := context.Background()

	if cost, err := bcrypt.Cost(issuer.decoyHash); err != nil || cost != bcrypt.MinCost {
		t.Fatalf("decoy hash cost = %d err=%v", cost, err)
	}

	if _, err := issuer.Verify(ctx, "nobody@x.com", record.PurposeSignIn, "048213", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if *compares != 1 {
		t.Fatalf("missing record compares = %d, want 1", *compares)
	}

	issued, err := issuer.Issue(ctx, "a@x.com", record.PurposeSignIn, "user-1", testSecret)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "000000", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if *compares != 2 {
		t.Fatalf("wrong guess compares = %d, want 2", *compares)
	}

	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, "abc", testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if *compares != 3 {
		t.Fatalf("malformed guess compares = %d, want 3", *compares)
	}

	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, issued.Code, testSecret); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := store.MarkUsed(ctx, issued.Record.ID, clk.Now()); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	before := *compares
	if _, err := issuer.Verify(ctx, "a@x.com", record.PurposeSignIn, issued.Code, testSecret); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("consumed record must be Invalid, got %v", err)
	}
	if *compares != before+1 {
		t.Fatalf("consumed record compares = %d, want %d", *compares, before+1)
	}
}

func TestDecoyHashesWithoutStoring(t *testing.T) {
	issuer, store, _ := newTestIssuer(t)
	if err := issuer.Decoy(testSecret); err != nil {
		t.Fatalf("Decoy: %v", err)
	}
	if _, err := store.Latest(context.Background(), "a@x.com", record.PurposeSignIn); !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("Decoy must not create a record, got %v", err)
	}
}
