package record

import (
	"strings"
	"time"
)

// Purpose scopes a verification code. Codes issued for one purpose never
// verify for another.
type Purpose string

const (
	// PurposePasswordReset verifies inbox control before a deferred
	// credential change, bridged by a session token.
	PurposePasswordReset Purpose = "reset"
	// PurposeSignIn signs the user in as soon as the code verifies.
	PurposeSignIn Purpose = "signin"
)

// ParsePurpose normalizes s and reports whether it names a known purpose.
func ParsePurpose(s string) (Purpose, bool) {
	p := Purpose(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposePasswordReset, PurposeSignIn:
		return true
	default:
		return false
	}
}

// Deferred reports whether a verified code for p is consumed later through
// a session token rather than in the same call.
func (p Purpose) Deferred() bool {
	return p == PurposePasswordReset
}

// Record is one issued verification code.
type Record struct {
	ID        string
	Recipient string
	Purpose   Purpose
	// UserID is the account the code was issued for.
	UserID     string
	CodeHash   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Attempts   int
	VerifiedAt *time.Time
	UsedAt     *time.Time
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.VerifiedAt != nil {
		v := *r.VerifiedAt
		out.VerifiedAt = &v
	}
	if r.UsedAt != nil {
		u := *r.UsedAt
		out.UsedAt = &u
	}
	return &out
}

// State is the position of a record in the verification state machine.
type State uint8

const (
	// StateNone means no record exists.
	StateNone State = iota
	// StateIssued means the code awaits a correct guess.
	StateIssued
	// StateVerified means the code was guessed but its action has not run.
	StateVerified
	// StateConsumed means the downstream action completed. Terminal.
	StateConsumed
	// StateExpired means the code deadline passed before verification. Terminal.
	StateExpired
	// StateLocked means the attempt ceiling was reached. Terminal.
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateIssued:
		return "issued"
	case StateVerified:
		return "verified"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// StateOf derives the state of rec at now. Precedence mirrors code
// verification: consumed, verified, expired, locked, issued.
func StateOf(rec *Record, now time.Time, maxAttempts int) State {
	switch {
	case rec == nil:
		return StateNone
	case rec.UsedAt != nil:
		return StateConsumed
	case rec.VerifiedAt != nil:
		return StateVerified
	case !now.Before(rec.ExpiresAt):
		return StateExpired
	case maxAttempts > 0 && rec.Attempts >= maxAttempts:
		return StateLocked
	default:
		return StateIssued
	}
}
