package goVerify

import "time"

// SecurityReport is a read-only snapshot of the engine's verification
// posture, returned by [Engine.SecurityReport]. It never carries secrets.
type SecurityReport struct {
	SecretConfigured bool
	CodeDigits       int
	CodeTTL          time.Duration
	MaxAttempts      int
	CodeHashCost     int

	SendInterval     time.Duration
	IPThrottleActive bool
	EnumerationDelay bool

	ResetLinkEnabled bool
	ResetLinkTTL     time.Duration
	ResetSessionTTL  time.Duration

	SignInTokensEnabled bool
	SigningAlgorithm    string
	AccessTTL           time.Duration

	Argon2 PasswordConfigReport
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		SecretConfigured: e.secretConfigured(),
		CodeDigits:       e.config.Codes.Digits,
		CodeTTL:          e.config.Codes.TTL,
		MaxAttempts:      e.config.Codes.MaxAttempts,
		CodeHashCost:     e.config.Codes.HashCost,
		SendInterval:     e.config.RateGate.MinInterval,
		IPThrottleActive: e.ipLimiter != nil,
		EnumerationDelay: e.enumerationDelay != nil,
		ResetLinkEnabled: e.config.ResetLink.Enabled,
		ResetSessionTTL:  e.config.ResetSession.TTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
	}
	if report.ResetLinkEnabled {
		report.ResetLinkTTL = e.config.ResetLink.TTL
	}
	if e.signIn != nil {
		report.SignInTokensEnabled = true
		report.SigningAlgorithm = e.config.SignIn.SigningMethod
		report.AccessTTL = e.config.SignIn.AccessTTL
	}
	return report
}
