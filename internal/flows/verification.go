package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/record"
)

// Account is the credential owner a recipient resolves to.
type Account struct {
	UserID         string
	Recipient      string
	CredentialHash string
}

// SubmitResult describes a record that RunSubmitCode moved to VERIFIED.
// SessionToken is set only for deferred purposes.
type SubmitResult struct {
	RecordID     string
	UserID       string
	Purpose      record.Purpose
	State        record.State
	VerifiedAt   time.Time
	SessionToken string
}

// SignInResult is returned by RunConsumeSignIn. AccessToken is empty when
// no signing key is configured.
type SignInResult struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

// VerificationMetrics carries the caller's metric ids for each flow branch.
type VerificationMetrics struct {
	CodeRequest         int
	CodeRateLimited     int
	CodeIssued          int
	CodeDeliveryFailure int
	CodeVerifySuccess   int
	CodeVerifyInvalid   int
	CodeVerifyExpired   int
	CodeVerifyLocked    int
	ResetSessionIssued  int
	ResetConsumeSuccess int
	ResetConsumeFailure int
	SignInSuccess       int
	SignInFailure       int
	SubmitLatency       int
}

// VerificationEvents names the audit events the flows emit.
type VerificationEvents struct {
	CodeRequest  string
	CodeSubmit   string
	ResetConsume string
	SignIn       string
}

// VerificationErrors maps flow failures onto the caller's sentinel errors.
// Zero fields fall back to package-local errors.
type VerificationErrors struct {
	EngineNotReady     error
	RateLimited        error
	Unavailable        error
	PasswordPolicy     error
	AccountNotFound    error
	CredentialConflict error
}

// VerificationDeps wires the code flows to storage, delivery, tokens and
// telemetry. Optional hooks default to no-ops.
type VerificationDeps struct {
	MaxAttempts int
	Now         func() time.Time

	SecretConfigured func() bool

	ClientIPFromContext func(context.Context) string

	CheckRequestThrottle func(context.Context, string) error
	CheckSubmitThrottle  func(context.Context, string) error
	AllowSend            func(context.Context, string) (bool, error)
	MapLimiterError      func(error) error

	FindAccountByRecipient func(context.Context, string) (Account, error)
	FindAccountByID        func(context.Context, string) (Account, error)
	UpdateCredential       func(context.Context, string, string, string) error
	CheckPassword          func(string) error
	HashPassword           func(string) (string, error)
	CompleteSignIn         func(context.Context, string, string) (string, time.Time, error)

	IssueCode   func(context.Context, string, record.Purpose, string) (string, *record.Record, error)
	HashDecoy   func()
	VerifyCode  func(context.Context, string, record.Purpose, string) (*record.Record, error)
	DeliverCode func(context.Context, string, record.Purpose, string, time.Time) error
	GetRecord   func(context.Context, string) (*record.Record, error)
	MarkUsed    func(context.Context, string) error

	IssueSessionToken  func(string, string) (string, error)
	VerifySessionToken func(context.Context, string) (string, string, error)

	SleepEnumerationDelay func(context.Context) error
	MapStoreError         func(error) error
	ReportMisconfigured   func(context.Context, string)

	MetricInc     func(int)
	Observe       func(int, time.Duration)
	EmitAudit     func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

// RunRequestCode gates, issues and delivers a code. Unknown recipients get
// the same nil result after a throwaway code hash and a jittered delay.
func RunRequestCode(ctx context.Context, recipient string, purpose record.Purpose, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)

	if deps.IssueCode == nil || deps.AllowSend == nil || deps.FindAccountByRecipient == nil || deps.DeliverCode == nil {
		return deps.Errors.EngineNotReady
	}
	deps.MetricInc(deps.Metrics.CodeRequest)
	if err := requireSecret(ctx, deps.SecretConfigured, deps.ReportMisconfigured, "request_code"); err != nil {
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, "", err, nil)
		return err
	}

	if recipient == "" || !purpose.Valid() {
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, "", outcome.ErrInvalid, func() map[string]string {
			return map[string]string{"reason": "bad_request", "purpose": string(purpose)}
		})
		return outcome.ErrInvalid
	}

	if err := deps.CheckRequestThrottle(ctx, deps.ClientIPFromContext(ctx)); err != nil {
		return rejectLimited(ctx, deps, "code_request_ip", recipient, purpose, deps.MapLimiterError(err))
	}

	allowed, err := deps.AllowSend(ctx, string(purpose)+":"+recipient)
	if err != nil {
		mapped := deps.MapLimiterError(err)
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, "", mapped, nil)
		return mapped
	}
	if !allowed {
		return rejectLimited(ctx, deps, "code_request", recipient, purpose, deps.Errors.RateLimited)
	}

	account, err := deps.FindAccountByRecipient(ctx, recipient)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			deps.EmitAudit(ctx, deps.Events.CodeRequest, true, "", nil, func() map[string]string {
				return map[string]string{"purpose": string(purpose), "issued": "false"}
			})
			deps.HashDecoy()
			return deps.SleepEnumerationDelay(ctx)
		}
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, "", deps.Errors.Unavailable, nil)
		return errors.Join(deps.Errors.Unavailable, err)
	}

	code, rec, err := deps.IssueCode(ctx, recipient, purpose, account.UserID)
	if err != nil {
		mapped := deps.MapStoreError(err)
		if errors.Is(mapped, outcome.ErrMisconfigured) {
			deps.ReportMisconfigured(ctx, "request_code")
		}
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, account.UserID, mapped, nil)
		return mapped
	}
	deps.MetricInc(deps.Metrics.CodeIssued)

	if err := deps.DeliverCode(ctx, recipient, purpose, code, rec.ExpiresAt); err != nil {
		deps.MetricInc(deps.Metrics.CodeDeliveryFailure)
		deps.EmitAudit(ctx, deps.Events.CodeRequest, false, account.UserID, deps.Errors.Unavailable, func() map[string]string {
			return map[string]string{"purpose": string(purpose), "record_id": rec.ID, "reason": "delivery_failed"}
		})
		return errors.Join(deps.Errors.Unavailable, err)
	}

	deps.EmitAudit(ctx, deps.Events.CodeRequest, true, account.UserID, nil, func() map[string]string {
		return map[string]string{"purpose": string(purpose), "record_id": rec.ID, "issued": "true"}
	})
	return nil
}

// RunSubmitCode verifies a code. For deferred purposes the result carries a
// session token; otherwise the record is left VERIFIED for RunConsumeSignIn.
func RunSubmitCode(ctx context.Context, recipient string, purpose record.Purpose, code string, deps VerificationDeps) (SubmitResult, error) {
	normalizeVerificationDeps(&deps)

	if deps.VerifyCode == nil || deps.IssueSessionToken == nil {
		return SubmitResult{}, deps.Errors.EngineNotReady
	}
	if err := requireSecret(ctx, deps.SecretConfigured, deps.ReportMisconfigured, "submit_code"); err != nil {
		deps.EmitAudit(ctx, deps.Events.CodeSubmit, false, "", err, nil)
		return SubmitResult{}, err
	}
	if recipient == "" || !purpose.Valid() {
		deps.MetricInc(deps.Metrics.CodeVerifyInvalid)
		deps.EmitAudit(ctx, deps.Events.CodeSubmit, false, "", outcome.ErrInvalid, func() map[string]string {
			return map[string]string{"reason": "bad_request", "purpose": string(purpose)}
		})
		return SubmitResult{}, outcome.ErrInvalid
	}

	if err := deps.CheckSubmitThrottle(ctx, deps.ClientIPFromContext(ctx)); err != nil {
		return SubmitResult{}, rejectLimited(ctx, deps, "code_submit_ip", recipient, purpose, deps.MapLimiterError(err))
	}

	start := deps.Now()
	rec, err := deps.VerifyCode(ctx, recipient, purpose, code)
	deps.Observe(deps.Metrics.SubmitLatency, deps.Now().Sub(start))
	if err != nil {
		mapped := deps.MapStoreError(err)
		switch outcome.KindOf(mapped) {
		case outcome.Invalid:
			deps.MetricInc(deps.Metrics.CodeVerifyInvalid)
		case outcome.Expired:
			deps.MetricInc(deps.Metrics.CodeVerifyExpired)
		case outcome.TooManyAttempts:
			deps.MetricInc(deps.Metrics.CodeVerifyLocked)
		case outcome.Misconfigured:
			deps.ReportMisconfigured(ctx, "submit_code")
		}
		deps.EmitAudit(ctx, deps.Events.CodeSubmit, false, "", mapped, func() map[string]string {
			return map[string]string{"purpose": string(purpose)}
		})
		return SubmitResult{}, mapped
	}
	deps.MetricInc(deps.Metrics.CodeVerifySuccess)

	result := SubmitResult{
		RecordID: rec.ID,
		UserID:   rec.UserID,
		Purpose:  rec.Purpose,
		State:    record.StateVerified,
	}
	if rec.VerifiedAt != nil {
		result.VerifiedAt = *rec.VerifiedAt
	}

	if purpose.Deferred() {
		tok, err := deps.IssueSessionToken(rec.UserID, rec.ID)
		if err != nil {
			mapped := deps.MapStoreError(err)
			if errors.Is(mapped, outcome.ErrMisconfigured) {
				deps.ReportMisconfigured(ctx, "issue_session_token")
			}
			deps.EmitAudit(ctx, deps.Events.CodeSubmit, false, rec.UserID, mapped, nil)
			return SubmitResult{}, mapped
		}
		result.SessionToken = tok
		deps.MetricInc(deps.Metrics.ResetSessionIssued)
	}

	deps.EmitAudit(ctx, deps.Events.CodeSubmit, true, rec.UserID, nil, func() map[string]string {
		return map[string]string{"purpose": string(purpose), "record_id": rec.ID}
	})
	return result, nil
}

// RunConsumeReset finalizes a deferred password change. The password policy
// and the session token are checked before the new password is hashed. The
// record is claimed before the credential is written, so of two concurrent
// consumers holding the same session token only one proceeds.
func RunConsumeReset(ctx context.Context, sessionToken, newPassword string, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)

	if deps.VerifySessionToken == nil || deps.MarkUsed == nil || deps.CheckPassword == nil || deps.HashPassword == nil ||
		deps.FindAccountByID == nil || deps.UpdateCredential == nil {
		return deps.Errors.EngineNotReady
	}
	if err := requireSecret(ctx, deps.SecretConfigured, deps.ReportMisconfigured, "consume_reset"); err != nil {
		deps.MetricInc(deps.Metrics.ResetConsumeFailure)
		deps.EmitAudit(ctx, deps.Events.ResetConsume, false, "", err, nil)
		return err
	}

	if err := deps.CheckPassword(newPassword); err != nil {
		return consumeFailed(ctx, deps, "", deps.Errors.PasswordPolicy)
	}

	userID, recordID, err := deps.VerifySessionToken(ctx, sessionToken)
	if err != nil {
		return consumeFailed(ctx, deps, "", deps.MapStoreError(err))
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return consumeFailed(ctx, deps, userID, hashFailure(deps.Errors, err))
	}

	if err := deps.MarkUsed(ctx, recordID); err != nil {
		return consumeFailed(ctx, deps, userID, deps.MapStoreError(err))
	}

	account, err := deps.FindAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return consumeFailed(ctx, deps, userID, outcome.ErrInvalid)
		}
		return consumeFailed(ctx, deps, userID, errors.Join(deps.Errors.Unavailable, err))
	}
	if err := deps.UpdateCredential(ctx, userID, account.CredentialHash, newHash); err != nil {
		if errors.Is(err, deps.Errors.CredentialConflict) {
			return consumeFailed(ctx, deps, userID, outcome.ErrExpired)
		}
		return consumeFailed(ctx, deps, userID, errors.Join(deps.Errors.Unavailable, err))
	}

	deps.MetricInc(deps.Metrics.ResetConsumeSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetConsume, true, userID, nil, func() map[string]string {
		return map[string]string{"record_id": recordID}
	})
	return nil
}

// RunConsumeSignIn completes an immediate sign-in for a record that
// RunSubmitCode just verified.
func RunConsumeSignIn(ctx context.Context, submitted SubmitResult, deps VerificationDeps) (SignInResult, error) {
	normalizeVerificationDeps(&deps)

	if deps.GetRecord == nil || deps.MarkUsed == nil {
		return SignInResult{}, deps.Errors.EngineNotReady
	}

	rec, err := deps.GetRecord(ctx, submitted.RecordID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return SignInResult{}, signInFailed(ctx, deps, submitted.UserID, outcome.ErrInvalid)
		}
		return SignInResult{}, signInFailed(ctx, deps, submitted.UserID, deps.MapStoreError(err))
	}
	if rec.Purpose != record.PurposeSignIn || rec.UserID != submitted.UserID ||
		record.StateOf(rec, deps.Now(), deps.MaxAttempts) != record.StateVerified {
		return SignInResult{}, signInFailed(ctx, deps, submitted.UserID, outcome.ErrInvalid)
	}

	if err := deps.MarkUsed(ctx, rec.ID); err != nil {
		return SignInResult{}, signInFailed(ctx, deps, rec.UserID, deps.MapStoreError(err))
	}

	result := SignInResult{UserID: rec.UserID}
	if deps.CompleteSignIn != nil {
		tok, expiresAt, err := deps.CompleteSignIn(ctx, rec.UserID, rec.ID)
		if err != nil {
			return SignInResult{}, signInFailed(ctx, deps, rec.UserID, errors.Join(deps.Errors.Unavailable, err))
		}
		result.AccessToken = tok
		result.ExpiresAt = expiresAt
	}

	deps.MetricInc(deps.Metrics.SignInSuccess)
	deps.EmitAudit(ctx, deps.Events.SignIn, true, rec.UserID, nil, func() map[string]string {
		return map[string]string{"record_id": rec.ID}
	})
	return result, nil
}

func rejectLimited(ctx context.Context, deps VerificationDeps, scope, recipient string, purpose record.Purpose, err error) error {
	if errors.Is(err, deps.Errors.RateLimited) {
		deps.MetricInc(deps.Metrics.CodeRateLimited)
		deps.EmitRateLimit(ctx, scope, func() map[string]string {
			return map[string]string{"recipient": recipient, "purpose": string(purpose)}
		})
	}
	deps.EmitAudit(ctx, deps.Events.CodeRequest, false, "", err, func() map[string]string {
		return map[string]string{"scope": scope, "purpose": string(purpose)}
	})
	return err
}

func consumeFailed(ctx context.Context, deps VerificationDeps, userID string, err error) error {
	if errors.Is(err, outcome.ErrMisconfigured) {
		deps.ReportMisconfigured(ctx, "consume_reset")
	}
	deps.MetricInc(deps.Metrics.ResetConsumeFailure)
	deps.EmitAudit(ctx, deps.Events.ResetConsume, false, userID, err, nil)
	return err
}

func signInFailed(ctx context.Context, deps VerificationDeps, userID string, err error) error {
	deps.MetricInc(deps.Metrics.SignInFailure)
	deps.EmitAudit(ctx, deps.Events.SignIn, false, userID, err, nil)
	return err
}

// hashFailure keeps policy rejections distinct from hasher faults.
func hashFailure(errs VerificationErrors, err error) error {
	if errors.Is(err, errs.PasswordPolicy) {
		return errs.PasswordPolicy
	}
	return errors.Join(errs.Unavailable, err)
}

// requireSecret runs before any account lookup.
func requireSecret(ctx context.Context, configured func() bool, report func(context.Context, string), op string) error {
	if configured == nil || configured() {
		return nil
	}
	report(ctx, op)
	return outcome.ErrMisconfigured
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.CheckRequestThrottle == nil {
		deps.CheckRequestThrottle = func(context.Context, string) error { return nil }
	}
	if deps.CheckSubmitThrottle == nil {
		deps.CheckSubmitThrottle = func(context.Context, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
	if deps.HashDecoy == nil {
		deps.HashDecoy = func() {}
	}
	if deps.ReportMisconfigured == nil {
		deps.ReportMisconfigured = func(context.Context, string) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Observe == nil {
		deps.Observe = func(int, time.Duration) {}
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
