// Package record defines the verification record model, its state machine,
// and the persistence contract that backs one-time codes.
//
// States per (recipient, purpose):
//
//	NONE -> ISSUED -> VERIFIED -> CONSUMED
//	           |
//	           +-> EXPIRED | LOCKED
//
// A fresh issue always restarts the machine at ISSUED because [Store.Latest]
// returns the newest record.
//
// # What this package must NOT do
//
//   - Import goVerify or any internal package.
//   - Hold plaintext codes.
package record
