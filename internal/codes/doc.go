// Package codes issues and verifies short numeric one-time codes.
//
// Codes are drawn from crypto/rand over [0, 10^digits) and stored only as
// bcrypt(sha256(code ":" secret)). Verification always targets the newest
// record for (recipient, purpose) and runs its checks in order: record
// exists and is unused, deadline not passed, attempts below the ceiling,
// then the slow hash. A wrong guess increments attempts through the store's
// guarded update; a right guess sets VerifiedAt and leaves UsedAt for the
// caller's downstream action.
//
// # What this package must NOT do
//
//   - Deliver codes or decide what a verified code unlocks.
//   - Import goVerify.
package codes
