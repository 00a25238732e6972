// Package middleware adapts a goVerify.Engine to net/http.
//
// # Handlers
//
//   - [ClientIP] attaches the caller address for per-IP throttling and audit.
//   - [Guard] admits requests bearing a valid sign-in access token.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token checks are
// delegated to Engine.ValidateAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Touch the record store.
package middleware
