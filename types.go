package goVerify

import (
	"context"
	"time"

	"github.com/MrEthical07/goVerify/record"
)

// Purpose names what a code is for.
type Purpose = record.Purpose

const (
	// PurposePasswordReset is deferred: a verified code yields a reset
	// session token that is consumed later.
	PurposePasswordReset = record.PurposePasswordReset
	// PurposeSignIn is immediate: the code is consumed by the sign-in itself.
	PurposeSignIn = record.PurposeSignIn
)

// State is the verification state of a (recipient, purpose) pair.
type State = record.State

const (
	StateNone     = record.StateNone
	StateIssued   = record.StateIssued
	StateVerified = record.StateVerified
	StateConsumed = record.StateConsumed
	StateExpired  = record.StateExpired
	StateLocked   = record.StateLocked
)

// Account is the slice of a user record the engine needs. CredentialHash is
// opaque and may be empty when no credential has been set.
type Account struct {
	UserID         string
	Recipient      string
	CredentialHash string
}

// CredentialProvider resolves accounts and swaps credential hashes. Lookups
// must return [ErrAccountNotFound] for unknown keys. UpdateCredential must be
// a compare-and-swap: it writes newHash only while the stored hash equals
// currentHash and otherwise returns [ErrCredentialConflict].
type CredentialProvider interface {
	FindByRecipient(ctx context.Context, recipient string) (Account, error)
	FindByID(ctx context.Context, userID string) (Account, error)
	UpdateCredential(ctx context.Context, userID, currentHash, newHash string) error
}

// MessageKind distinguishes what a [Message] carries.
type MessageKind string

const (
	MessageCode      MessageKind = "code"
	MessageResetLink MessageKind = "reset_link"
)

// Message is handed to a [Sender] for out-of-band delivery. Exactly one of
// Code or Token is set.
type Message struct {
	Kind      MessageKind
	Recipient string
	Purpose   Purpose
	Code      string
	Token     string
	ExpiresAt time.Time
}

// Sender delivers codes and reset links. The engine never transmits them
// itself.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// SubmitResult is returned by a successful [Engine.SubmitCode]. SessionToken
// is set only for deferred purposes.
type SubmitResult struct {
	RecordID     string
	UserID       string
	Purpose      Purpose
	State        State
	VerifiedAt   time.Time
	SessionToken string
}

// SignInResult is returned by [Engine.ConsumeSignIn]. AccessToken is empty
// when no sign-in signing key is configured.
type SignInResult struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}
