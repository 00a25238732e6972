package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/record"
)

const (
	// SessionVersion prefixes password reset session tokens.
	SessionVersion = "ps1"
	// DefaultSessionTTL is the lifetime of a reset session token.
	DefaultSessionTTL = 15 * time.Minute
)

// SessionClaims is the payload of a reset session token.
type SessionClaims struct {
	UserID   string `json:"uid"`
	RecordID string `json:"lid"`
	Exp      int64  `json:"exp"`
}

// ExpiresAtUnix implements [Payload].
func (c *SessionClaims) ExpiresAtUnix() int64 { return c.Exp }

// Validate implements [Validator].
func (c *SessionClaims) Validate() error {
	if strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.RecordID) == "" {
		return errors.New("session claims incomplete")
	}
	return nil
}

// RecordLookup loads a verification record by id.
type RecordLookup func(ctx context.Context, recordID string) (*record.Record, error)

// SessionTokens bridges a verified code to a later credential change. The
// token is cryptographically stateless; single use comes from the
// referenced record, which stops validating the moment it is marked used.
type SessionTokens struct {
	codec *Codec
	ttl   time.Duration
}

// NewSessionTokens wraps codec. A non-positive ttl selects [DefaultSessionTTL].
func NewSessionTokens(codec *Codec, ttl time.Duration) *SessionTokens {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionTokens{codec: codec, ttl: ttl}
}

// Issue returns a session token for userID referencing recordID.
func (s *SessionTokens) Issue(userID, recordID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptySubject
	}
	if strings.TrimSpace(recordID) == "" {
		return "", errors.New("session token record id is empty")
	}
	claims := &SessionClaims{
		UserID:   userID,
		RecordID: recordID,
		Exp:      s.codec.Now().Add(s.ttl).Unix(),
	}
	return s.codec.Encode(SessionVersion, claims)
}

// Verify decodes tok and requires the referenced record to be verified,
// unused, issued for a deferred purpose and owned by the token's user.
// Every record-state failure is [outcome.ErrInvalid]. Backend errors other
// than [record.ErrNotFound] are returned as-is.
func (s *SessionTokens) Verify(ctx context.Context, tok string, lookup RecordLookup) (*SessionClaims, error) {
	var claims SessionClaims
	if err := s.codec.Decode(tok, SessionVersion, &claims); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, fmt.Errorf("%w: no record lookup", outcome.ErrInvalid)
	}

	rec, err := lookup(ctx, claims.RecordID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, fmt.Errorf("%w: record not found", outcome.ErrInvalid)
		}
		return nil, err
	}

	switch {
	case rec == nil, rec.ID != claims.RecordID:
		return nil, fmt.Errorf("%w: record not found", outcome.ErrInvalid)
	case rec.VerifiedAt == nil:
		return nil, fmt.Errorf("%w: record not verified", outcome.ErrInvalid)
	case rec.UsedAt != nil:
		return nil, fmt.Errorf("%w: record already used", outcome.ErrInvalid)
	case !rec.Purpose.Deferred():
		return nil, fmt.Errorf("%w: record purpose", outcome.ErrInvalid)
	case rec.UserID != claims.UserID:
		return nil, fmt.Errorf("%w: user mismatch", outcome.ErrInvalid)
	}

	return &claims, nil
}
