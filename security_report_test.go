package goVerify

import (
	"testing"
	"time"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.SignIn.SigningMethod = "hs256"
		cfg.SignIn.PrivateKey = []byte("01234567890123456789012345678901")
		cfg.ResetLink.Enabled = false
		cfg.EnumerationDelay = true
	})

	report := env.engine.SecurityReport()
	if !report.SecretConfigured {
		t.Fatal("expected secret configured in report")
	}
	if report.CodeDigits != 6 || report.MaxAttempts != 5 || report.CodeTTL != 10*time.Minute {
		t.Fatalf("unexpected code posture %+v", report)
	}
	if !report.SignInTokensEnabled || report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256 sign-in tokens, got %+v", report)
	}
	if report.ResetLinkEnabled || report.ResetLinkTTL != 0 {
		t.Fatal("expected reset links disabled in report")
	}
	if !report.EnumerationDelay {
		t.Fatal("expected enumeration delay in report")
	}
	if report.IPThrottleActive {
		t.Fatal("ip throttle is off by default")
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if report := e.SecurityReport(); report.SecretConfigured || report.CodeDigits != 0 {
		t.Fatalf("nil engine should report zero posture, got %+v", report)
	}
}
