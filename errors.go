package goVerify

import (
	"errors"

	"github.com/MrEthical07/goVerify/outcome"
)

var (
	// ErrInvalid covers malformed, forged, unknown and already consumed input.
	ErrInvalid = outcome.ErrInvalid
	// ErrExpired covers past-deadline codes and tokens, and reset links whose
	// bound credential has changed.
	ErrExpired = outcome.ErrExpired
	// ErrTooManyAttempts means the record hit its wrong-guess ceiling.
	ErrTooManyAttempts = outcome.ErrTooManyAttempts
	// ErrMisconfigured means the engine has no secret.
	ErrMisconfigured = outcome.ErrMisconfigured

	// ErrRateLimited is returned when the send gate or IP throttle refuses a call.
	ErrRateLimited = errors.New("verification rate limited")
	// ErrUnavailable wraps store, gate, provider and delivery failures.
	ErrUnavailable = errors.New("verification backend unavailable")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrPasswordPolicy is returned when a new password fails the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAccountNotFound must be returned by a [CredentialProvider] for unknown
	// recipients and ids.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCredentialConflict must be returned by
	// [CredentialProvider.UpdateCredential] when the stored hash no longer
	// equals the expected current hash.
	ErrCredentialConflict = errors.New("credential changed concurrently")
)
