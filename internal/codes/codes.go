package codes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/goVerify/internal"
	"github.com/MrEthical07/goVerify/outcome"
	"github.com/MrEthical07/goVerify/record"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Defaults applied by [New] to zero Config fields.
const (
	// DefaultDigits is the code length.
	DefaultDigits = 6
	// DefaultTTL bounds how long an issued code verifies.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts is the wrong-guess ceiling per record.
	DefaultMaxAttempts = 5
	// DefaultHashCost is the bcrypt cost of stored code hashes.
	DefaultHashCost = 11
)

// Config tunes code issuance and verification.
type Config struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	HashCost    int
}

func (c Config) withDefaults() Config {
	if c.Digits == 0 {
		c.Digits = DefaultDigits
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.HashCost == 0 {
		c.HashCost = DefaultHashCost
	}
	return c
}

// Issued is the result of a successful Issue. Code is plaintext and must
// only be handed to a delivery channel.
type Issued struct {
	Code   string
	Record *record.Record
}

// Issuer issues and verifies numeric one-time codes per (recipient, purpose).
type Issuer struct {
	store  record.Store
	cfg    Config
	now    func() time.Time
	random io.Reader

	compare   func(hash, password []byte) error
	decoyHash []byte
}

// Option customizes an [Issuer].
type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithRandom overrides the random source used for codes. It must be
// cryptographically secure outside of tests.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) {
		i.random = r
	}
}

// New returns an Issuer persisting through store. It computes one decoy
// hash at the configured cost.
func New(store record.Store, cfg Config, opts ...Option) *Issuer {
	i := &Issuer{
		store:   store,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		compare: bcrypt.CompareHashAndPassword,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.decoyHash, _ = bcrypt.GenerateFromPassword([]byte("decoy"), i.cfg.HashCost)
	return i
}

// MaxAttempts returns the wrong-guess ceiling.
func (i *Issuer) MaxAttempts() int { return i.cfg.MaxAttempts }

// Issue creates a fresh record for (recipient, purpose), superseding any
// earlier one as the verification target.
func (i *Issuer) Issue(ctx context.Context, recipient string, purpose record.Purpose, userID, secret string) (*Issued, error) {
	if secret == "" {
		return nil, outcome.ErrMisconfigured
	}
	if recipient == "" || !purpose.Valid() {
		return nil, errors.New("codes: recipient and purpose required")
	}

	code, err := internal.NewNumericCode(i.random, i.cfg.Digits)
	if err != nil {
		return nil, fmt.Errorf("codes: generate: %w", err)
	}
	hash, err := HashCode(code, secret, i.cfg.HashCost)
	if err != nil {
		return nil, err
	}

	now := i.now().UTC()
	rec := &record.Record{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Purpose:   purpose,
		UserID:    userID,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(i.cfg.TTL),
	}
	if err := i.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	return &Issued{Code: code, Record: rec}, nil
}

// Verify checks supplied against the newest record for (recipient,
// purpose). A correct code sets VerifiedAt but never UsedAt. Every Invalid
// outcome pays one bcrypt compare, whether or not a record exists.
func (i *Issuer) Verify(ctx context.Context, recipient string, purpose record.Purpose, supplied, secret string) (*record.Record, error) {
	if secret == "" {
		return nil, outcome.ErrMisconfigured
	}

	rec, err := i.store.Latest(ctx, recipient, purpose)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			i.compareDecoy(supplied, secret)
			return nil, outcome.ErrInvalid
		}
		return nil, err
	}

	switch {
	case rec.UsedAt != nil:
		i.compareDecoy(supplied, secret)
		return nil, outcome.ErrInvalid
	case !i.now().Before(rec.ExpiresAt):
		return nil, outcome.ErrExpired
	case rec.Attempts >= i.cfg.MaxAttempts:
		return nil, outcome.ErrTooManyAttempts
	}

	match, err := i.matches(rec.CodeHash, supplied, secret)
	if err != nil {
		return nil, err
	}
	if !match {
		if _, err := i.store.IncrementAttempts(ctx, rec.ID, i.cfg.MaxAttempts); err != nil {
			return nil, i.settle(ctx, rec.ID, err)
		}
		return nil, outcome.ErrInvalid
	}

	verifiedAt, err := i.store.MarkVerified(ctx, rec.ID, i.now().UTC(), i.cfg.MaxAttempts)
	if err != nil {
		return nil, i.settle(ctx, rec.ID, err)
	}
	rec.VerifiedAt = &verifiedAt
	return rec, nil
}

func (i *Issuer) matches(hash, supplied, secret string) (bool, error) {
	supplied = strings.TrimSpace(supplied)
	if !internal.IsNumeric(supplied, i.cfg.Digits) {
		i.compareDecoy(supplied, secret)
		return false, nil
	}
	err := i.compare([]byte(hash), pepper(supplied, secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("codes: compare: %w", err)
	}
}

func (i *Issuer) compareDecoy(supplied, secret string) {
	_ = i.compare(i.decoyHash, pepper(supplied, secret))
}

// Decoy hashes a throwaway code at the issuing cost without touching the
// store, for request paths that end without issuing.
func (i *Issuer) Decoy(secret string) error {
	_, err := HashCode(strings.Repeat("0", i.cfg.Digits), secret, i.cfg.HashCost)
	return err
}

// settle classifies a failed conditional update by re-reading the record: a
// concurrent caller either consumed it or spent the last attempt.
func (i *Issuer) settle(ctx context.Context, id string, cause error) error {
	switch {
	case errors.Is(cause, record.ErrNotFound):
		return outcome.ErrInvalid
	case !errors.Is(cause, record.ErrConflict):
		return cause
	}

	rec, err := i.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return outcome.ErrInvalid
		}
		return err
	}
	if rec.UsedAt == nil && rec.Attempts >= i.cfg.MaxAttempts {
		return outcome.ErrTooManyAttempts
	}
	return outcome.ErrInvalid
}

// HashCode returns bcrypt(sha256hex(code ":" secret)) at cost. The SHA-256
// step keeps long secrets under bcrypt's 72-byte input limit.
func HashCode(code, secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(pepper(code, secret), cost)
	if err != nil {
		return "", fmt.Errorf("codes: hash: %w", err)
	}
	return string(hash), nil
}

func pepper(code, secret string) []byte {
	sum := sha256.Sum256([]byte(code + ":" + secret))
	return []byte(hex.EncodeToString(sum[:]))
}
