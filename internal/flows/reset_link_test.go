package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
)

func resetLinkDeps(h *flowHarness) ResetLinkDeps {
	v := h.deps()
	return ResetLinkDeps{
		Now:                    v.Now,
		AllowSend:              v.AllowSend,
		FindAccountByRecipient: v.FindAccountByRecipient,
		FindAccountByID:        v.FindAccountByID,
		UpdateCredential:       v.UpdateCredential,
		CheckPassword:          v.CheckPassword,
		HashPassword:           v.HashPassword,
		IssueResetToken: func(userID, credHash string) (string, time.Time, error) {
			return userID + "|" + credHash, h.now.Add(30 * time.Minute), nil
		},
		ResetTokenSubject: func(tok string) (string, error) {
			uid, _, ok := strings.Cut(tok, "|")
			if !ok {
				return "", outcome.ErrInvalid
			}
			return uid, nil
		},
		VerifyResetToken: func(tok, credHash string) error {
			_, bound, _ := strings.Cut(tok, "|")
			if bound != credHash {
				return outcome.ErrExpired
			}
			return nil
		},
		DeliverLink: func(_ context.Context, recipient, tok string, _ time.Time) error {
			h.delivered = append(h.delivered, recipient+"="+tok)
			return nil
		},
		SleepEnumerationDelay: v.SleepEnumerationDelay,
		Errors:                v.Errors,
	}
}

func TestResetLinkRoundTripIsSingleUse(t *testing.T) {
	h := newFlowHarness()
	ctx := context.Background()
	deps := resetLinkDeps(h)

	if err := RunRequestResetLink(ctx, "a@x.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	tok := strings.TrimPrefix(h.delivered[0], "a@x.com=")

	if err := RunConfirmResetLink(ctx, tok, "new-password", deps); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := RunConfirmResetLink(ctx, tok, "again-password", deps); !errors.Is(err, outcome.ErrExpired) {
		t.Fatalf("reuse should read as expired, got %v", err)
	}
}

func TestResetLinkUnknownRecipient(t *testing.T) {
	h := newFlowHarness()
	if err := RunRequestResetLink(context.Background(), "ghost@x.com", resetLinkDeps(h)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if h.delayed != 1 || len(h.delivered) != 0 {
		t.Fatalf("delayed=%d delivered=%v", h.delayed, h.delivered)
	}
}

func TestResetLinkGateClosed(t *testing.T) {
	h := newFlowHarness()
	deps := resetLinkDeps(h)
	deps.AllowSend = func(context.Context, string) (bool, error) { return false, nil }

	if err := RunRequestResetLink(context.Background(), "a@x.com", deps); !errors.Is(err, errTestLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestResetLinkConfirmChecksTokenBeforeHashing(t *testing.T) {
	h := newFlowHarness()
	ctx := context.Background()
	deps := resetLinkDeps(h)

	if err := RunConfirmResetLink(ctx, "garbage", "long-enough", deps); !errors.Is(err, outcome.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if err := RunConfirmResetLink(ctx, "u1|stale", "long-enough", deps); !errors.Is(err, outcome.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if err := RunConfirmResetLink(ctx, "u1|abc", "x", deps); !errors.Is(err, errTestPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if h.hashes != 0 || h.updates != 0 {
		t.Fatalf("hashes=%d updates=%d, want none", h.hashes, h.updates)
	}

	if err := RunConfirmResetLink(ctx, "u1|abc", "long-enough", deps); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.hashes != 1 {
		t.Fatalf("hashes = %d, want 1", h.hashes)
	}
}
