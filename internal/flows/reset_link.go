package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
)

// ResetLinkMetrics carries the caller's metric ids for the link flows.
type ResetLinkMetrics struct {
	ResetLinkIssued         int
	ResetLinkRateLimited    int
	ResetLinkConfirmSuccess int
	ResetLinkConfirmFailure int
}

// ResetLinkEvents names the audit events the link flows emit.
type ResetLinkEvents struct {
	ResetLinkRequest string
	ResetLinkConfirm string
}

// ResetLinkDeps wires the emailed reset link flows.
type ResetLinkDeps struct {
	Now              func() time.Time
	SecretConfigured func() bool

	AllowSend       func(context.Context, string) (bool, error)
	MapLimiterError func(error) error

	FindAccountByRecipient func(context.Context, string) (Account, error)
	FindAccountByID        func(context.Context, string) (Account, error)
	UpdateCredential       func(context.Context, string, string, string) error
	CheckPassword          func(string) error
	HashPassword           func(string) (string, error)

	IssueResetToken   func(string, string) (string, time.Time, error)
	ResetTokenSubject func(string) (string, error)
	VerifyResetToken  func(string, string) error
	DeliverLink       func(context.Context, string, string, time.Time) error

	SleepEnumerationDelay func(context.Context) error
	ReportMisconfigured   func(context.Context, string)

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)

	Metrics ResetLinkMetrics
	Events  ResetLinkEvents
	Errors  VerificationErrors
}

// RunRequestResetLink mails a stateless reset token bound to the account's
// current credential hash.
func RunRequestResetLink(ctx context.Context, recipient string, deps ResetLinkDeps) error {
	normalizeResetLinkDeps(&deps)

	if deps.AllowSend == nil || deps.FindAccountByRecipient == nil || deps.IssueResetToken == nil || deps.DeliverLink == nil {
		return deps.Errors.EngineNotReady
	}
	if err := requireSecret(ctx, deps.SecretConfigured, deps.ReportMisconfigured, "request_reset_link"); err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, false, "", err, nil)
		return err
	}
	if recipient == "" {
		return outcome.ErrInvalid
	}

	allowed, err := deps.AllowSend(ctx, "link:"+recipient)
	if err != nil {
		return deps.MapLimiterError(err)
	}
	if !allowed {
		deps.MetricInc(deps.Metrics.ResetLinkRateLimited)
		deps.EmitRateLimit(ctx, "reset_link_request", func() map[string]string {
			return map[string]string{"recipient": recipient}
		})
		deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, false, "", deps.Errors.RateLimited, nil)
		return deps.Errors.RateLimited
	}

	account, err := deps.FindAccountByRecipient(ctx, recipient)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, true, "", nil, func() map[string]string {
				return map[string]string{"issued": "false"}
			})
			return deps.SleepEnumerationDelay(ctx)
		}
		return errors.Join(deps.Errors.Unavailable, err)
	}

	tok, expiresAt, err := deps.IssueResetToken(account.UserID, account.CredentialHash)
	if err != nil {
		if errors.Is(err, outcome.ErrMisconfigured) {
			deps.ReportMisconfigured(ctx, "request_reset_link")
		}
		deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, false, account.UserID, err, nil)
		return err
	}

	if err := deps.DeliverLink(ctx, recipient, tok, expiresAt); err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, false, account.UserID, deps.Errors.Unavailable, func() map[string]string {
			return map[string]string{"reason": "delivery_failed"}
		})
		return errors.Join(deps.Errors.Unavailable, err)
	}

	deps.MetricInc(deps.Metrics.ResetLinkIssued)
	deps.EmitAudit(ctx, deps.Events.ResetLinkRequest, true, account.UserID, nil, func() map[string]string {
		return map[string]string{"issued": "true"}
	})
	return nil
}

// RunConfirmResetLink verifies tok against the account's current credential
// hash and swaps in the new one. The new password is hashed only after the
// token verifies. A credential changed since issuance, either before the call
// or concurrently with it, reads as expired.
func RunConfirmResetLink(ctx context.Context, tok, newPassword string, deps ResetLinkDeps) error {
	normalizeResetLinkDeps(&deps)

	if deps.ResetTokenSubject == nil || deps.VerifyResetToken == nil || deps.FindAccountByID == nil ||
		deps.UpdateCredential == nil || deps.CheckPassword == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}
	if err := requireSecret(ctx, deps.SecretConfigured, deps.ReportMisconfigured, "confirm_reset_link"); err != nil {
		deps.MetricInc(deps.Metrics.ResetLinkConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.ResetLinkConfirm, false, "", err, nil)
		return err
	}

	if err := deps.CheckPassword(newPassword); err != nil {
		return confirmFailed(ctx, deps, "", deps.Errors.PasswordPolicy)
	}

	userID, err := deps.ResetTokenSubject(tok)
	if err != nil {
		return confirmFailed(ctx, deps, "", err)
	}

	account, err := deps.FindAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return confirmFailed(ctx, deps, userID, outcome.ErrInvalid)
		}
		return confirmFailed(ctx, deps, userID, errors.Join(deps.Errors.Unavailable, err))
	}

	if err := deps.VerifyResetToken(tok, account.CredentialHash); err != nil {
		return confirmFailed(ctx, deps, userID, err)
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return confirmFailed(ctx, deps, userID, hashFailure(deps.Errors, err))
	}

	if err := deps.UpdateCredential(ctx, userID, account.CredentialHash, newHash); err != nil {
		if errors.Is(err, deps.Errors.CredentialConflict) {
			return confirmFailed(ctx, deps, userID, outcome.ErrExpired)
		}
		return confirmFailed(ctx, deps, userID, errors.Join(deps.Errors.Unavailable, err))
	}

	deps.MetricInc(deps.Metrics.ResetLinkConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetLinkConfirm, true, userID, nil, nil)
	return nil
}

func confirmFailed(ctx context.Context, deps ResetLinkDeps, userID string, err error) error {
	if errors.Is(err, outcome.ErrMisconfigured) {
		deps.ReportMisconfigured(ctx, "confirm_reset_link")
	}
	deps.MetricInc(deps.Metrics.ResetLinkConfirmFailure)
	deps.EmitAudit(ctx, deps.Events.ResetLinkConfirm, false, userID, err, nil)
	return err
}

func normalizeResetLinkDeps(deps *ResetLinkDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
	if deps.ReportMisconfigured == nil {
		deps.ReportMisconfigured = func(context.Context, string) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errors.New("engine not ready")
	}
	if deps.Errors.RateLimited == nil {
		deps.Errors.RateLimited = errors.New("rate limited")
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = errors.New("backend unavailable")
	}
	if deps.Errors.PasswordPolicy == nil {
		deps.Errors.PasswordPolicy = errors.New("password policy")
	}
	if deps.Errors.AccountNotFound == nil {
		deps.Errors.AccountNotFound = errors.New("account not found")
	}
	if deps.Errors.CredentialConflict == nil {
		deps.Errors.CredentialConflict = errors.New("credential conflict")
	}
}
