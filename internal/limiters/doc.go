// Package limiters provides the verification throttles.
//
// # Limiters
//
//   - [SendGate]: per-(purpose, recipient) minimum interval between sends,
//     in Redis ([RedisSendGate]) or process memory ([MemorySendGate]).
//   - [VerificationLimiter]: per-IP fixed windows for requests and
//     submissions, built on internal/rate.
//
// Gates are advisory. The attempt ceiling on each record is the actual
// brute-force defense.
//
// # What this package must NOT do
//
//   - Import goVerify or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
