package goVerify

import (
	"context"
	"errors"

	"github.com/MrEthical07/goVerify/outcome"
	"go.uber.org/zap"
)

const (
	auditEventCodeRequest        = "code_request"
	auditEventCodeSubmit         = "code_submit"
	auditEventResetConsume       = "reset_consume"
	auditEventSignIn             = "signin"
	auditEventResetLinkRequest   = "reset_link_request"
	auditEventResetLinkConfirm   = "reset_link_confirm"
	auditEventRateLimitTriggered = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrPasswordPolicy AuditErrorCode = "password_policy"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrNotReady       AuditErrorCode = "engine_not_ready"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		if kind := outcome.KindOf(err); kind != outcome.Unknown {
			event.Outcome = kind.String()
		} else {
			event.Error = string(auditErrorCode(err))
		}
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		base := map[string]string{"scope": scope}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

// reportMisconfigured logs at Error on every call path that finds no secret.
func (e *Engine) reportMisconfigured(ctx context.Context, op string) {
	e.metricInc(MetricMisconfigured)
	e.logger.Error("verification secret missing",
		zap.String("op", op),
		zap.String("ip", clientIPFromContext(ctx)),
	)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}
