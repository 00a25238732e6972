package goVerify

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goVerify/internal/audit"
	"github.com/MrEthical07/goVerify/internal/codes"
	internalflows "github.com/MrEthical07/goVerify/internal/flows"
	"github.com/MrEthical07/goVerify/internal/limiters"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/password"
	"github.com/MrEthical07/goVerify/record"
	"github.com/MrEthical07/goVerify/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Engine issues and verifies one-time codes, reset links and reset session
// tokens for the password reset and code sign-in flows.
//
// Engine instances are built once through [Builder] and are safe for
// concurrent use. All state lives in the record store and the send gate;
// tokens are stateless.
type Engine struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	codec         *token.Codec
	resetTokens   *token.ResetTokens
	sessionTokens *token.SessionTokens

	store     record.Store
	issuer    *codes.Issuer
	gate      limiters.SendGate
	ipLimiter *limiters.VerificationLimiter

	credentials  CredentialProvider
	sender       Sender
	passwordHash *password.Argon2
	signIn       *jwt.Manager

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	enumerationDelay func(context.Context) error
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter and the
// submit latency histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SigningManager returns the sign-in access token manager, or nil when no
// signing key is configured. HTTP guards use it to verify bearer tokens.
func (e *Engine) SigningManager() *jwt.Manager {
	if e == nil {
		return nil
	}
	return e.signIn
}

// ValidateAccess verifies a sign-in access token minted by ConsumeSignIn.
// A past-expiry token is [ErrExpired]; any other failure is [ErrInvalid].
func (e *Engine) ValidateAccess(_ context.Context, accessToken string) (*jwt.AccessClaims, error) {
	if e == nil || e.signIn == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.signIn.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	return claims, nil
}

// RecordState reports where the newest record for (recipient, purpose)
// sits in the verification state machine. StateNone means no record.
func (e *Engine) RecordState(ctx context.Context, recipient string, purpose Purpose) (State, error) {
	if e == nil || e.store == nil {
		return StateNone, ErrEngineNotReady
	}
	if !purpose.Valid() {
		return StateNone, ErrInvalid
	}
	rec, err := e.store.Latest(ctx, recipient, purpose)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return StateNone, nil
		}
		return StateNone, e.mapStoreError(err)
	}
	return record.StateOf(rec, e.now(), e.config.Codes.MaxAttempts), nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// mapStoreError folds backend errors into the public taxonomy. Result kinds
// pass through unchanged.
func (e *Engine) mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case outcome.KindOf(err) != outcome.Unknown:
		return err
	case errors.Is(err, record.ErrNotFound), errors.Is(err, record.ErrConflict):
		return ErrInvalid
	case errors.Is(err, token.ErrEmptySubject):
		return ErrInvalid
	case errors.Is(err, password.ErrPolicy):
		return ErrPasswordPolicy
	default:
		e.logger.Warn("verification backend failure", zap.Error(err))
		return errors.Join(ErrUnavailable, err)
	}
}

func (e *Engine) mapLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrVerificationRateLimited):
		return ErrRateLimited
	default:
		e.logger.Warn("rate gate failure", zap.Error(err))
		return errors.Join(ErrUnavailable, err)
	}
}

func (e *Engine) secretConfigured() bool {
	return e.codec != nil && e.codec.Configured()
}

func (e *Engine) findAccountByRecipient(ctx context.Context, recipient string) (internalflows.Account, error) {
	acc, err := e.credentials.FindByRecipient(ctx, recipient)
	if err != nil {
		return internalflows.Account{}, err
	}
	return internalflows.Account(acc), nil
}

func (e *Engine) findAccountByID(ctx context.Context, userID string) (internalflows.Account, error) {
	acc, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return internalflows.Account{}, err
	}
	return internalflows.Account(acc), nil
}

func (e *Engine) checkPassword(pw string) error {
	if err := e.passwordHash.CheckPolicy(pw); err != nil {
		return ErrPasswordPolicy
	}
	return nil
}

func (e *Engine) hashPassword(pw string) (string, error) {
	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return "", ErrPasswordPolicy
		}
		e.logger.Warn("password hashing failed", zap.Error(err))
		return "", err
	}
	return hash, nil
}

func (e *Engine) flowErrors() internalflows.VerificationErrors {
	return internalflows.VerificationErrors{
		EngineNotReady:     ErrEngineNotReady,
		RateLimited:        ErrRateLimited,
		Unavailable:        ErrUnavailable,
		PasswordPolicy:     ErrPasswordPolicy,
		AccountNotFound:    ErrAccountNotFound,
		CredentialConflict: ErrCredentialConflict,
	}
}

func (e *Engine) verificationDeps() internalflows.VerificationDeps {
	if e == nil || e.issuer == nil || e.store == nil || e.credentials == nil || e.sender == nil || e.gate == nil {
		return internalflows.VerificationDeps{Errors: internalflows.VerificationErrors{EngineNotReady: ErrEngineNotReady}}
	}

	deps := internalflows.VerificationDeps{
		MaxAttempts:         e.config.Codes.MaxAttempts,
		Now:                 e.now,
		SecretConfigured:    e.secretConfigured,
		ClientIPFromContext: clientIPFromContext,
		CheckRequestThrottle: func(ctx context.Context, ip string) error {
			return e.ipLimiter.CheckRequest(ctx, ip)
		},
		CheckSubmitThrottle: func(ctx context.Context, ip string) error {
			return e.ipLimiter.CheckSubmit(ctx, ip)
		},
		AllowSend:              e.gate.Allow,
		MapLimiterError:        e.mapLimiterError,
		FindAccountByRecipient: e.findAccountByRecipient,
		FindAccountByID:        e.findAccountByID,
		UpdateCredential:       e.credentials.UpdateCredential,
		CheckPassword:          e.checkPassword,
		HashPassword:           e.hashPassword,
		IssueCode: func(ctx context.Context, recipient string, purpose record.Purpose, userID string) (string, *record.Record, error) {
			issued, err := e.issuer.Issue(ctx, recipient, purpose, userID, e.config.Secret)
			if err != nil {
				return "", nil, err
			}
			return issued.Code, issued.Record, nil
		},
		HashDecoy: func() {
			_ = e.issuer.Decoy(e.config.Secret)
		},
		VerifyCode: func(ctx context.Context, recipient string, purpose record.Purpose, code string) (*record.Record, error) {
			return e.issuer.Verify(ctx, recipient, purpose, code, e.config.Secret)
		},
		DeliverCode: func(ctx context.Context, recipient string, purpose record.Purpose, code string, expiresAt time.Time) error {
			err := e.sender.Send(ctx, Message{
				Kind:      MessageCode,
				Recipient: recipient,
				Purpose:   purpose,
				Code:      code,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				e.logger.Warn("code delivery failed", zap.String("purpose", string(purpose)), zap.Error(err))
			}
			return err
		},
		GetRecord: e.store.Get,
		MarkUsed: func(ctx context.Context, id string) error {
			return e.store.MarkUsed(ctx, id, e.now().UTC())
		},
		IssueSessionToken: e.sessionTokens.Issue,
		VerifySessionToken: func(ctx context.Context, tok string) (string, string, error) {
			claims, err := e.sessionTokens.Verify(ctx, tok, e.store.Get)
			if err != nil {
				return "", "", err
			}
			return claims.UserID, claims.RecordID, nil
		},
		SleepEnumerationDelay: e.enumerationDelay,
		MapStoreError:         e.mapStoreError,
		ReportMisconfigured:   e.reportMisconfigured,
		MetricInc:             func(id int) { e.metricInc(MetricID(id)) },
		Observe:               func(id int, d time.Duration) { e.observe(MetricID(id), d) },
		EmitAudit:             e.emitAudit,
		EmitRateLimit:         e.emitRateLimit,
		Metrics: internalflows.VerificationMetrics{
			CodeRequest:         int(MetricCodeRequest),
			CodeRateLimited:     int(MetricCodeRateLimited),
			CodeIssued:          int(MetricCodeIssued),
			CodeDeliveryFailure: int(MetricCodeDeliveryFailure),
			CodeVerifySuccess:   int(MetricCodeVerifySuccess),
			CodeVerifyInvalid:   int(MetricCodeVerifyInvalid),
			CodeVerifyExpired:   int(MetricCodeVerifyExpired),
			CodeVerifyLocked:    int(MetricCodeVerifyLocked),
			ResetSessionIssued:  int(MetricResetSessionIssued),
			ResetConsumeSuccess: int(MetricResetConsumeSuccess),
			ResetConsumeFailure: int(MetricResetConsumeFailure),
			SignInSuccess:       int(MetricSignInSuccess),
			SignInFailure:       int(MetricSignInFailure),
			SubmitLatency:       int(MetricSubmitLatency),
		},
		Events: internalflows.VerificationEvents{
			CodeRequest:  auditEventCodeRequest,
			CodeSubmit:   auditEventCodeSubmit,
			ResetConsume: auditEventResetConsume,
			SignIn:       auditEventSignIn,
		},
		Errors: e.flowErrors(),
	}
	if e.signIn != nil {
		deps.CompleteSignIn = func(_ context.Context, userID, recordID string) (string, time.Time, error) {
			return e.signIn.CreateAccess(userID, recordID)
		}
	}
	return deps
}

func (e *Engine) resetLinkDeps() internalflows.ResetLinkDeps {
	if e == nil || e.resetTokens == nil || e.credentials == nil || e.sender == nil || e.gate == nil {
		return internalflows.ResetLinkDeps{Errors: internalflows.VerificationErrors{EngineNotReady: ErrEngineNotReady}}
	}

	return internalflows.ResetLinkDeps{
		Now:                    e.now,
		SecretConfigured:       e.secretConfigured,
		AllowSend:              e.gate.Allow,
		MapLimiterError:        e.mapLimiterError,
		FindAccountByRecipient: e.findAccountByRecipient,
		FindAccountByID:        e.findAccountByID,
		UpdateCredential:       e.credentials.UpdateCredential,
		CheckPassword:          e.checkPassword,
		HashPassword:           e.hashPassword,
		IssueResetToken: func(userID, credentialHash string) (string, time.Time, error) {
			expiresAt := e.now().Add(e.resetTokens.TTL())
			tok, err := e.resetTokens.Issue(userID, credentialHash)
			if err != nil {
				return "", time.Time{}, e.mapStoreError(err)
			}
			return tok, expiresAt, nil
		},
		ResetTokenSubject: e.resetTokens.Subject,
		VerifyResetToken: func(tok, credentialHash string) error {
			_, err := e.resetTokens.Verify(tok, credentialHash)
			return err
		},
		DeliverLink: func(ctx context.Context, recipient, tok string, expiresAt time.Time) error {
			err := e.sender.Send(ctx, Message{
				Kind:      MessageResetLink,
				Recipient: recipient,
				Purpose:   PurposePasswordReset,
				Token:     tok,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				e.logger.Warn("reset link delivery failed", zap.Error(err))
			}
			return err
		},
		SleepEnumerationDelay: e.enumerationDelay,
		ReportMisconfigured:   e.reportMisconfigured,
		MetricInc:             func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:             e.emitAudit,
		EmitRateLimit:         e.emitRateLimit,
		Metrics: internalflows.ResetLinkMetrics{
			ResetLinkIssued:         int(MetricResetLinkIssued),
			ResetLinkRateLimited:    int(MetricResetLinkRateLimited),
			ResetLinkConfirmSuccess: int(MetricResetLinkConfirmSuccess),
			ResetLinkConfirmFailure: int(MetricResetLinkConfirmFailure),
		},
		Events: internalflows.ResetLinkEvents{
			ResetLinkRequest: auditEventResetLinkRequest,
			ResetLinkConfirm: auditEventResetLinkConfirm,
		},
		Errors: e.flowErrors(),
	}
}
