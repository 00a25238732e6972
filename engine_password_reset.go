package goVerify

import (
	"context"

	internalflows "github.com/MrEthical07/goVerify/internal/flows"
)

// RequestPasswordResetLink mails a reset link token bound to the account's
// current credential hash. It shares the send gate with RequestCode under
// its own key. Unknown recipients return nil.
//
// Returns [ErrEngineNotReady] when reset links are disabled.
func (e *Engine) RequestPasswordResetLink(ctx context.Context, recipient string) error {
	if e == nil || !e.config.ResetLink.Enabled {
		return ErrEngineNotReady
	}
	return internalflows.RunRequestResetLink(ctx, normalizeRecipient(recipient), e.resetLinkDeps())
}

// ConfirmPasswordResetLink verifies tok against the account's current
// credential hash and replaces it. Because the hash changes, tok and every
// other link issued before it report [ErrExpired] from then on.
func (e *Engine) ConfirmPasswordResetLink(ctx context.Context, tok, newPassword string) error {
	if e == nil || !e.config.ResetLink.Enabled {
		return ErrEngineNotReady
	}
	return internalflows.RunConfirmResetLink(ctx, tok, newPassword, e.resetLinkDeps())
}
