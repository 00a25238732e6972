package internal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	minCodeDigits = 4
	maxCodeDigits = 10

	enumerationDelayMinMs = 20
	enumerationDelayMaxMs = 40
)

// NewNumericCode draws a uniform value in [0, 10^digits) from random and
// returns it zero-padded. A nil random selects crypto/rand.
func NewNumericCode(random io.Reader, digits int) (string, error) {
	if digits < minCodeDigits || digits > maxCodeDigits {
		return "", errors.New("invalid code digits")
	}
	if random == nil {
		random = rand.Reader
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(random, max)
	if err != nil {
		return "", err
	}

	code := fmt.Sprintf("%0*d", digits, n.Int64())
	if len(code) != digits {
		return "", errors.New("invalid code generation length")
	}
	return code, nil
}

// IsNumeric reports whether s is exactly digits ASCII digits.
func IsNumeric(s string, digits int) bool {
	if len(s) != digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SleepEnumerationDelay blocks for a random 20-40ms so that responses for
// unknown recipients are not measurably faster than for known ones.
func SleepEnumerationDelay(ctx context.Context) error {
	span := int64(enumerationDelayMaxMs - enumerationDelayMinMs + 1)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(enumerationDelayMinMs+n.Int64()) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
