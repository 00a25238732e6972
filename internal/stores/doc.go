// Package stores provides the persistence backends for verification records
// and, for the bundled server, account credentials.
//
// # Backends
//
//   - [RedisRecordStore]: one hash per record plus a newest-first id list per
//     (recipient, purpose). Conditional updates run as Lua scripts.
//   - [PostgresRecordStore]: verification_records table. Conditional updates
//     are single UPDATE ... WHERE statements; Latest orders by
//     (created_at DESC, seq DESC).
//   - [PostgresAccountStore]: accounts table with compare-and-swap credential
//     updates.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for records. It does
// NOT generate codes, hash secrets, enforce send intervals, or decide
// verification outcomes. Those belong to internal/codes and internal/flows.
//
// # What this package must NOT do
//
//   - Import goVerify or any sibling internal package.
//   - Log or store plaintext codes.
package stores
