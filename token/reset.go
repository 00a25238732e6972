package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
)

const (
	// ResetVersion prefixes password reset link tokens.
	ResetVersion = "pr1"
	// DefaultResetTTL is the lifetime of a reset link token.
	DefaultResetTTL = 30 * time.Minute
)

// ErrEmptySubject is returned when a token is issued without a user id.
var ErrEmptySubject = errors.New("token subject is empty")

// ResetClaims is the payload of a password reset link token.
type ResetClaims struct {
	UserID        string `json:"uid"`
	Exp           int64  `json:"exp"`
	CredentialSig string `json:"pwd"`
}

// ExpiresAtUnix implements [Payload].
func (c *ResetClaims) ExpiresAtUnix() int64 { return c.Exp }

// Validate implements [Validator].
func (c *ResetClaims) Validate() error {
	if strings.TrimSpace(c.UserID) == "" || c.CredentialSig == "" {
		return errors.New("reset claims incomplete")
	}
	return nil
}

// ResetTokens issues and verifies password reset link tokens. Each token
// carries a digest of the credential hash current at issuance, so any
// credential change makes every outstanding token report Expired.
type ResetTokens struct {
	codec *Codec
	ttl   time.Duration
}

// NewResetTokens wraps codec. A non-positive ttl selects [DefaultResetTTL].
func NewResetTokens(codec *Codec, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokens{codec: codec, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (r *ResetTokens) TTL() time.Duration { return r.ttl }

// Issue returns a token for userID bound to credentialHash. An empty hash
// (no credential set yet) is a valid binding.
func (r *ResetTokens) Issue(userID, credentialHash string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptySubject
	}
	claims := &ResetClaims{
		UserID:        userID,
		Exp:           r.codec.Now().Add(r.ttl).Unix(),
		CredentialSig: CredentialSignature(credentialHash),
	}
	return r.codec.Encode(ResetVersion, claims)
}

// Subject decodes tok and returns its user id without checking the
// credential binding. It is used to locate the account whose current hash
// is then passed to Verify.
func (r *ResetTokens) Subject(tok string) (string, error) {
	var claims ResetClaims
	if err := r.codec.Decode(tok, ResetVersion, &claims); err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Verify decodes tok and checks it against the account's current credential
// hash. A binding mismatch is reported as [outcome.ErrExpired].
func (r *ResetTokens) Verify(tok, credentialHash string) (string, error) {
	var claims ResetClaims
	if err := r.codec.Decode(tok, ResetVersion, &claims); err != nil {
		return "", err
	}

	want := CredentialSignature(credentialHash)
	if subtle.ConstantTimeCompare([]byte(want), []byte(claims.CredentialSig)) != 1 {
		return "", fmt.Errorf("%w: credential changed since issuance", outcome.ErrExpired)
	}

	return claims.UserID, nil
}

// CredentialSignature is the digest embedded in reset tokens.
func CredentialSignature(credentialHash string) string {
	sum := sha256.Sum256([]byte(credentialHash))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
