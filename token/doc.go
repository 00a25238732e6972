// Package token implements stateless signed tokens for the password reset
// paths.
//
// # Components
//
//   - [Codec]: versioned HMAC-SHA256 payload encoder with embedded expiry.
//   - [ResetTokens]: reset link tokens bound to a digest of the user's
//     current credential hash. Changing the credential expires every
//     outstanding link without a revocation list.
//   - [SessionTokens]: short-lived bridge from a verified one-time code to a
//     credential change, valid only while its record is verified and unused.
//
// Decode failures are reported with the sentinels in package outcome.
//
// # What this package must NOT do
//
//   - Persist tokens or keep a blacklist.
//   - Import goVerify or any internal package.
package token
