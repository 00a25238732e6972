package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Memory = minMemoryKB
	cfg.Time = 1
	cfg.Parallelism = 1
	return cfg
}

func TestHashEncodesPHC(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 6 || len(parts[4]) != 22 || len(parts[5]) != 43 {
		t.Fatalf("unexpected salt/key segments: %s", hash)
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())
	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("two hashes of one password must differ")
	}
}

func TestHashPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBytes = 16
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	for _, pw := range []string{"", "short", strings.Repeat("x", 17)} {
		if _, err := hasher.Hash(pw); !errors.Is(err, ErrPolicy) {
			t.Fatalf("Hash(%q): expected ErrPolicy, got %v", pw, err)
		}
	}
	if _, err := hasher.Hash(strings.Repeat("x", 16)); err != nil {
		t.Fatalf("boundary length should pass: %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected weak salt to be rejected")
	}
	cfg = testConfig()
	cfg.MinBytes, cfg.MaxBytes = 20, 10
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected inverted length policy to be rejected")
	}
}
