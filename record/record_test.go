package record

import (
	"testing"
	"time"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Minute)
	fresh := func() *Record {
		return &Record{ID: "r1", CreatedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(8 * time.Minute)}
	}

	if got := StateOf(nil, now, 5); got != StateNone {
		t.Fatalf("nil record: got %s", got)
	}
	if got := StateOf(fresh(), now, 5); got != StateIssued {
		t.Fatalf("fresh record: got %s", got)
	}

	locked := fresh()
	locked.Attempts = 5
	if got := StateOf(locked, now, 5); got != StateLocked {
		t.Fatalf("attempts at ceiling: got %s", got)
	}

	expired := fresh()
	expired.ExpiresAt = now
	if got := StateOf(expired, now, 5); got != StateExpired {
		t.Fatalf("deadline reached: got %s", got)
	}

	verified := fresh()
	verified.VerifiedAt = &at
	if got := StateOf(verified, now.Add(time.Hour), 5); got != StateVerified {
		t.Fatalf("verified record stays verified after code deadline: got %s", got)
	}

	consumed := verified.Clone()
	consumed.UsedAt = &at
	if got := StateOf(consumed, now, 5); got != StateConsumed {
		t.Fatalf("used record: got %s", got)
	}
	if verified.UsedAt != nil {
		t.Fatalf("Clone must not alias the source record")
	}
}

func TestParsePurpose(t *testing.T) {
	p, ok := ParsePurpose("  RESET ")
	if !ok || p != PurposePasswordReset || !p.Deferred() {
		t.Fatalf("expected deferred reset purpose, got %q %v", p, ok)
	}
	p, ok = ParsePurpose("signin")
	if !ok || p.Deferred() {
		t.Fatalf("signin must be immediate, got %q %v", p, ok)
	}
	if _, ok := ParsePurpose("delete-account"); ok {
		t.Fatalf("unknown purpose accepted")
	}
}
