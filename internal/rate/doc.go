// Package rate provides the Redis fixed-window counter used by the
// verification throttles.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are prefix:scope:subject.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goVerify module.
package rate
