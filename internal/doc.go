// Package internal contains helpers that are private to goVerify: numeric
// code generation from a cryptographically secure source and the
// enumeration-resistance delay.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - codes: one-time code issuance and verification
//   - flows: pure-function orchestrators for every Engine operation
//   - limiters: send gate and per-IP verification throttles
//   - rate: Redis fixed-window counter primitive
//   - stores: Redis and Postgres verification record stores
//
// # What this package must NOT do
//
//   - Use math/rand for anything a client could guess.
//   - Be imported by any package outside the goVerify module.
package internal
