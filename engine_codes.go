package goVerify

import (
	"context"
	"strings"

	internalflows "github.com/MrEthical07/goVerify/internal/flows"
)

// RequestCode issues a fresh code for (recipient, purpose) and hands it to
// the configured [Sender]. Any earlier code for the pair stops being the
// verification target.
//
// Unknown recipients return nil after a short random delay, so the result
// does not reveal whether an account exists. A closed send gate returns
// [ErrRateLimited] without issuing anything.
func (e *Engine) RequestCode(ctx context.Context, recipient string, purpose Purpose) error {
	return internalflows.RunRequestCode(ctx, normalizeRecipient(recipient), purpose, e.verificationDeps())
}

// SubmitCode verifies code against the newest record for (recipient,
// purpose). A wrong guess costs one attempt.
//
// For [PurposePasswordReset] the result carries a session token that
// [Engine.ConsumeResetSession] accepts. For [PurposeSignIn] the record is
// left verified and must be passed to [Engine.ConsumeSignIn].
func (e *Engine) SubmitCode(ctx context.Context, recipient string, purpose Purpose, code string) (*SubmitResult, error) {
	res, err := internalflows.RunSubmitCode(ctx, normalizeRecipient(recipient), purpose, code, e.verificationDeps())
	if err != nil {
		return nil, err
	}
	out := SubmitResult(res)
	return &out, nil
}

// ConsumeResetSession replaces the account's credential with an argon2id
// hash of newPassword. The session token works once: the referenced record
// is marked used before the credential is written, and a second consumer
// gets [ErrInvalid].
//
// A password outside the length policy returns [ErrPasswordPolicy] and
// leaves the session usable.
func (e *Engine) ConsumeResetSession(ctx context.Context, sessionToken, newPassword string) error {
	return internalflows.RunConsumeReset(ctx, sessionToken, newPassword, e.verificationDeps())
}

// ConsumeSignIn completes a sign-in for a record verified by SubmitCode.
func (e *Engine) ConsumeSignIn(ctx context.Context, submitted *SubmitResult) (*SignInResult, error) {
	if submitted == nil {
		return nil, ErrInvalid
	}
	res, err := internalflows.RunConsumeSignIn(ctx, internalflows.SubmitResult(*submitted), e.verificationDeps())
	if err != nil {
		return nil, err
	}
	out := SignInResult(res)
	return &out, nil
}

// SignInWithCode is SubmitCode for [PurposeSignIn] followed by ConsumeSignIn.
func (e *Engine) SignInWithCode(ctx context.Context, recipient, code string) (*SignInResult, error) {
	submitted, err := e.SubmitCode(ctx, recipient, PurposeSignIn, code)
	if err != nil {
		return nil, err
	}
	return e.ConsumeSignIn(ctx, submitted)
}

func normalizeRecipient(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}
