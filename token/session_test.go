package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/record"
)

func verifiedRecord() *record.Record {
	at := testNow.Add(-time.Minute)
	return &record.Record{
		ID:         "rec-1",
		Recipient:  "a@x.com",
		Purpose:    record.PurposePasswordReset,
		UserID:     "user-1",
		CreatedAt:  testNow.Add(-2 * time.Minute),
		ExpiresAt:  testNow.Add(8 * time.Minute),
		VerifiedAt: &at,
	}
}

func lookupOf(rec *record.Record) RecordLookup {
	return func(_ context.Context, id string) (*record.Record, error) {
		if rec == nil || rec.ID != id {
			return nil, record.ErrNotFound
		}
		return rec.Clone(), nil
	}
}

func TestSessionTokenVerify(t *testing.T) {
	sessions := NewSessionTokens(NewCodec("s3cret", WithClock(fixedClock(testNow))), 0)
	tok, err := sessions.Issue("user-1", "rec-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := sessions.Verify(context.Background(), tok, lookupOf(verifiedRecord()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.RecordID != "rec-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionTokenRecordState(t *testing.T) {
	sessions := NewSessionTokens(NewCodec("s3cret", WithClock(fixedClock(testNow))), 0)
	tok, err := sessions.Issue("user-1", "rec-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	used := verifiedRecord()
	usedAt := testNow
	used.UsedAt = &usedAt

	unverified := verifiedRecord()
	unverified.VerifiedAt = nil

	otherUser := verifiedRecord()
	otherUser.UserID = "user-2"

	signIn := verifiedRecord()
	signIn.Purpose = record.PurposeSignIn

	cases := map[string]*record.Record{
		"missing":    nil,
		"used":       used,
		"unverified": unverified,
		"other user": otherUser,
		"sign-in":    signIn,
	}
	for name, rec := range cases {
		if _, err := sessions.Verify(context.Background(), tok, lookupOf(rec)); !errors.Is(err, outcome.ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestSessionTokenExpiresBeforeLookup(t *testing.T) {
	now := testNow
	sessions := NewSessionTokens(NewCodec("s3cret", WithClock(func() time.Time { return now })), 0)
	tok, err := sessions.Issue("user-1", "rec-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = testNow.Add(DefaultSessionTTL)
	called := false
	_, err = sessions.Verify(context.Background(), tok, func(context.Context, string) (*record.Record, error) {
		called = true
		return verifiedRecord(), nil
	})
	if !errors.Is(err, outcome.ErrExpired) {
		t.Fatalf("expected Expired, got %v", err)
	}
	if called {
		t.Fatalf("lookup must not run for an expired token")
	}
}

func TestSessionTokenBackendError(t *testing.T) {
	sessions := NewSessionTokens(NewCodec("s3cret", WithClock(fixedClock(testNow))), 0)
	tok, err := sessions.Issue("user-1", "rec-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	down := errors.New("connection refused")
	_, err = sessions.Verify(context.Background(), tok, func(context.Context, string) (*record.Record, error) {
		return nil, down
	})
	if !errors.Is(err, down) || errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("backend error must surface unchanged, got %v", err)
	}
}
