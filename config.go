package goVerify

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goVerify/internal/codes"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/password"
	"github.com/MrEthical07/goVerify/token"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every engine setting. Start from [DefaultConfig] and override.
//
// Secret may be left empty: Build succeeds and every call path reports
// [ErrMisconfigured] until a secret is supplied.
type Config struct {
	Secret string

	Codes        CodesConfig
	RateGate     RateGateConfig
	ResetLink    ResetLinkConfig
	ResetSession ResetSessionConfig
	SignIn       SignInConfig
	Password     PasswordConfig
	Store        StoreConfig
	Audit        AuditConfig
	Metrics      MetricsConfig

	// EnumerationDelay adds a random 20-40ms pause when a recipient is
	// unknown so responses do not reveal which recipients exist.
	EnumerationDelay bool
}

/*
====================================
CODES CONFIG
====================================
*/

// CodesConfig tunes one-time code issuance and verification.
type CodesConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	// HashCost is the bcrypt cost of the stored code hash.
	HashCost int
}

/*
====================================
RATE GATE CONFIG
====================================
*/

// RateGateConfig bounds how often a code or link is sent per (purpose,
// recipient), plus an optional per-IP fixed window.
type RateGateConfig struct {
	MinInterval time.Duration

	EnableIPThrottle bool
	IPMaxRequests    int
	IPWindow         time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// ResetLinkConfig controls emailed reset links.
type ResetLinkConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ResetSessionConfig controls the token bridging a verified reset code to
// the credential change.
type ResetSessionConfig struct {
	TTL time.Duration
}

// SignInConfig controls the access token minted when a sign-in code is
// consumed. With no PrivateKey, ConsumeSignIn returns only the user id.
type SignInConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for replacement credentials.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinBytes    int
	MaxBytes    int
}

/*
====================================
STORE / AUDIT / METRICS
====================================
*/

// StoreConfig controls the Redis layout. Retention must outlive both the
// code TTL and the reset session TTL so a session token never outlives its
// record.
type StoreConfig struct {
	RedisPrefix string
	Retention   time.Duration
}

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: six digits, ten minute codes,
// five attempts, bcrypt cost 11, a 60s send interval, 30 minute reset links
// and 15 minute reset sessions.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Codes: CodesConfig{
			Digits:      codes.DefaultDigits,
			TTL:         codes.DefaultTTL,
			MaxAttempts: codes.DefaultMaxAttempts,
			HashCost:    codes.DefaultHashCost,
		},
		RateGate: RateGateConfig{
			MinInterval:   60 * time.Second,
			IPMaxRequests: 30,
			IPWindow:      10 * time.Minute,
		},
		ResetLink: ResetLinkConfig{
			Enabled: true,
			TTL:     token.DefaultResetTTL,
		},
		ResetSession: ResetSessionConfig{
			TTL: token.DefaultSessionTTL,
		},
		SignIn: SignInConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: string(jwt.MethodEd25519),
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
			MinBytes:    pw.MinBytes,
			MaxBytes:    pw.MaxBytes,
		},
		Store: StoreConfig{
			RedisPrefix: "gv",
			Retention:   24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		EnumerationDelay: true,
	}
}

// Validate checks internal consistency. It does not require Secret.
func (c *Config) Validate() error {
	// Codes
	if c.Codes.Digits < 4 || c.Codes.Digits > 10 {
		return errors.New("Codes Digits must be between 4 and 10")
	}
	if c.Codes.TTL <= 0 {
		return errors.New("Codes TTL must be > 0")
	}
	if c.Codes.MaxAttempts <= 0 {
		return errors.New("Codes MaxAttempts must be > 0")
	}
	if c.Codes.HashCost < bcrypt.MinCost || c.Codes.HashCost > bcrypt.MaxCost {
		return fmt.Errorf("Codes HashCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Rate gate
	if c.RateGate.MinInterval < 0 {
		return errors.New("RateGate MinInterval must be >= 0")
	}
	if c.RateGate.EnableIPThrottle {
		if c.RateGate.IPMaxRequests <= 0 {
			return errors.New("RateGate IPMaxRequests must be > 0 when EnableIPThrottle is true")
		}
		if c.RateGate.IPWindow <= 0 {
			return errors.New("RateGate IPWindow must be > 0 when EnableIPThrottle is true")
		}
	}

	// Tokens
	if c.ResetLink.Enabled && c.ResetLink.TTL <= 0 {
		return errors.New("ResetLink TTL must be > 0")
	}
	if c.ResetSession.TTL <= 0 {
		return errors.New("ResetSession TTL must be > 0")
	}
	if len(c.SignIn.PrivateKey) > 0 || len(c.SignIn.PublicKey) > 0 {
		if c.SignIn.AccessTTL <= 0 {
			return errors.New("SignIn AccessTTL must be > 0")
		}
		switch jwt.SigningMethod(c.SignIn.SigningMethod) {
		case jwt.MethodEd25519, jwt.MethodHS256:
		default:
			return errors.New("unsupported SignIn signing method")
		}
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if c.Store.Retention < c.Codes.TTL || c.Store.Retention < c.ResetSession.TTL {
		return errors.New("Store Retention must be >= Codes TTL and ResetSession TTL")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c PasswordConfig) toPassword() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
		MinBytes:    c.MinBytes,
		MaxBytes:    c.MaxBytes,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.SignIn.PrivateKey = cloneBytes(cfg.SignIn.PrivateKey)
	out.SignIn.PublicKey = cloneBytes(cfg.SignIn.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
