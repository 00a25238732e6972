package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	algorithmID          = "argon2id"

	// DefaultMinBytes is the shortest password Hash accepts.
	DefaultMinBytes = 10
	// DefaultMaxBytes caps input so a huge password cannot pin a CPU.
	DefaultMaxBytes = 1024
)

// ErrPolicy is returned by Hash when a password falls outside the length
// policy.
var ErrPolicy = errors.New("password policy violation")

// Config holds Argon2id cost parameters and the length policy applied to new
// passwords.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinBytes int
	MaxBytes int
}

// DefaultConfig returns interactive-login strength parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinBytes:    DefaultMinBytes,
		MaxBytes:    DefaultMaxBytes,
	}
}

// Argon2 hashes new credentials for the reset flows.
type Argon2 struct {
	config Config
	random io.Reader
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg, random: rand.Reader}, nil
}

// CheckPolicy reports whether password satisfies the length policy. Bytes are
// counted as given, with no Unicode normalization.
func (a *Argon2) CheckPolicy(password string) error {
	if len(password) < a.config.MinBytes {
		return fmt.Errorf("%w: shorter than %d bytes", ErrPolicy, a.config.MinBytes)
	}
	if len(password) > a.config.MaxBytes {
		return fmt.Errorf("%w: longer than %d bytes", ErrPolicy, a.config.MaxBytes)
	}
	return nil
}

// Hash returns a PHC-encoded Argon2id hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.CheckPolicy(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(a.random, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < 1:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case cfg.MinBytes < 1 || cfg.MaxBytes < cfg.MinBytes:
		return errors.New("password length policy invalid")
	}
	return nil
}
