package goVerify

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Secret != "" {
		t.Fatalf("default config must not ship a secret")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "four digits valid",
			mutate:    func(c *Config) { c.Codes.Digits = 4 },
			wantValid: true,
		},
		{
			name:      "three digits invalid",
			mutate:    func(c *Config) { c.Codes.Digits = 3 },
			wantValid: false,
		},
		{
			name:      "eleven digits invalid",
			mutate:    func(c *Config) { c.Codes.Digits = 11 },
			wantValid: false,
		},
		{
			name:      "zero code ttl invalid",
			mutate:    func(c *Config) { c.Codes.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "zero max attempts invalid",
			mutate:    func(c *Config) { c.Codes.MaxAttempts = 0 },
			wantValid: false,
		},
		{
			name:      "bcrypt cost below minimum invalid",
			mutate:    func(c *Config) { c.Codes.HashCost = 3 },
			wantValid: false,
		},
		{
			name:      "negative send interval invalid",
			mutate:    func(c *Config) { c.RateGate.MinInterval = -time.Second },
			wantValid: false,
		},
		{
			name: "ip throttle without window invalid",
			mutate: func(c *Config) {
				c.RateGate.EnableIPThrottle = true
				c.RateGate.IPWindow = 0
			},
			wantValid: false,
		},
		{
			name: "disabled reset link ignores ttl",
			mutate: func(c *Config) {
				c.ResetLink.Enabled = false
				c.ResetLink.TTL = 0
			},
			wantValid: true,
		},
		{
			name:      "zero session ttl invalid",
			mutate:    func(c *Config) { c.ResetSession.TTL = 0 },
			wantValid: false,
		},
		{
			name: "unsupported signing method invalid",
			mutate: func(c *Config) {
				c.SignIn.PrivateKey = make([]byte, 32)
				c.SignIn.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 signing valid",
			mutate: func(c *Config) {
				c.SignIn.PrivateKey = make([]byte, 32)
				c.SignIn.SigningMethod = "hs256"
			},
			wantValid: true,
		},
		{
			name:      "retention shorter than session invalid",
			mutate:    func(c *Config) { c.Store.Retention = 5 * time.Minute },
			wantValid: false,
		},
		{
			name:      "empty redis prefix invalid",
			mutate:    func(c *Config) { c.Store.RedisPrefix = "" },
			wantValid: false,
		},
		{
			name: "audit without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestWithConfigClonesKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignIn.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	b := New().WithConfig(cfg)
	cfg.SignIn.PrivateKey[0] = 'X'

	if b.config.SignIn.PrivateKey[0] != '0' {
		t.Fatalf("builder must not alias caller key material")
	}
}
