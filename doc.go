// Package goVerify is a stateless signed-token and one-time code engine for
// password reset and code-based sign-in.
//
// Codes are numeric, stored only as peppered bcrypt hashes, capped at a small
// number of wrong guesses and consumed at most once. Reset links are HMAC
// tokens bound to the account's current credential hash, so completing one
// reset expires every other outstanding link with no revocation list.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goVerify is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Stores, limiters, code hashing and flow orchestration live
// under internal/ and are never exported. Token encoding lives in the public
// token package so that services can inspect tokens without an Engine.
//
// # Results
//
// Every verification path returns one of four sentinel kinds, [ErrInvalid],
// [ErrExpired], [ErrTooManyAttempts] or [ErrMisconfigured], classifiable with
// errors.Is or outcome.KindOf. Callers must render "not found" and
// [ErrInvalid] identically.
package goVerify
