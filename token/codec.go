package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/goVerify/outcome"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrBadVersion is returned by Encode for an empty version or one containing ".".
	ErrBadVersion = errors.New("token version must be non-empty and contain no dots")
	// ErrExpiryNotInFuture is returned by Encode when the payload deadline has already passed.
	ErrExpiryNotInFuture = errors.New("token expiry must be in the future")
)

// Payload is a JSON-encodable token body with an embedded deadline.
type Payload interface {
	// ExpiresAtUnix returns the deadline in unix seconds.
	ExpiresAtUnix() int64
}

// Validator is implemented by payloads that check their own shape after decoding.
type Validator interface {
	Validate() error
}

// Codec encodes and decodes compact signed payloads of the form
//
//	version "." base64url(json(payload)) "." base64url(HMAC-SHA256(secret, version "." payloadB64))
//
// Tokens are never stored. A Codec with an empty secret is usable but every
// call returns [outcome.ErrMisconfigured].
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option customizes a [Codec].
type Option func(*Codec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a Codec signing with secret.
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the codec holds a secret.
func (c *Codec) Configured() bool {
	return c != nil && len(c.secret) > 0
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time {
	if c == nil || c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Encode signs payload under version.
func (c *Codec) Encode(version string, payload Payload) (string, error) {
	if !c.Configured() {
		return "", outcome.ErrMisconfigured
	}
	if version == "" || strings.Contains(version, ".") {
		return "", ErrBadVersion
	}
	if payload == nil {
		return "", errors.New("token payload is nil")
	}
	if payload.ExpiresAtUnix() <= c.Now().Unix() {
		return "", ErrExpiryNotInFuture
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}

	signingInput := version + "." + base64.RawURLEncoding.EncodeToString(raw)
	sig, err := jwt.SigningMethodHS256.Sign(signingInput, c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode verifies token and unmarshals its payload into dst, which must be a
// pointer. Checks run in a fixed order: secret present, three segments with a
// matching version, payload shape, constant-time signature comparison, then
// expiry. Only the last check yields [outcome.ErrExpired].
func (c *Codec) Decode(tok, version string, dst Payload) error {
	if !c.Configured() {
		return outcome.ErrMisconfigured
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 || parts[0] == "" || parts[0] != version {
		return fmt.Errorf("%w: malformed token", outcome.ErrInvalid)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: payload encoding", outcome.ErrInvalid)
	}
	if err := decodeStrict(raw, dst); err != nil {
		return fmt.Errorf("%w: payload shape", outcome.ErrInvalid)
	}
	if dst.ExpiresAtUnix() <= 0 {
		return fmt.Errorf("%w: payload shape", outcome.ErrInvalid)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: payload shape", outcome.ErrInvalid)
		}
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: signature encoding", outcome.ErrInvalid)
	}
	// hmac.Equal under the hood.
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return fmt.Errorf("%w: signature mismatch", outcome.ErrInvalid)
	}

	if c.Now().Unix() >= dst.ExpiresAtUnix() {
		return outcome.ErrExpired
	}

	return nil
}

func decodeStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after payload")
	}
	return nil
}
