package record

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("verification record not found")
	// ErrConflict is returned when a conditional update's guard does not hold.
	ErrConflict = errors.New("verification record state conflict")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("verification record store unavailable")
)

// Store persists verification records.
//
// Ordering contract: Latest returns the record for (recipient, purpose) with
// the greatest CreatedAt. Records created at the same instant are ordered by
// insertion, newest first. A fresh Create therefore always becomes the
// verification target.
//
// IncrementAttempts, MarkVerified and MarkUsed must each execute as a single
// atomic conditional update so that concurrent callers on the same record
// observe a serial order.
type Store interface {
	// Create inserts rec. rec.ID must be unique.
	Create(ctx context.Context, rec *Record) error
	// Latest returns the newest record for (recipient, purpose) or ErrNotFound.
	Latest(ctx context.Context, recipient string, purpose Purpose) (*Record, error)
	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// IncrementAttempts adds one wrong guess when UsedAt is unset and
	// Attempts < maxAttempts, returning the new count. ErrConflict otherwise.
	IncrementAttempts(ctx context.Context, id string, maxAttempts int) (int, error)
	// MarkVerified sets VerifiedAt to at when it is unset, provided UsedAt is
	// unset and Attempts < maxAttempts. It returns the stored VerifiedAt, so
	// the first verification wins. ErrConflict when the guard fails.
	MarkVerified(ctx context.Context, id string, at time.Time, maxAttempts int) (time.Time, error)
	// MarkUsed sets UsedAt when VerifiedAt is set and UsedAt is unset.
	// ErrConflict otherwise, which is how a second consumer is rejected.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}
