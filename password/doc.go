// Package password hashes replacement credentials with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hash enforces a byte-length policy before doing any work and returns
// [ErrPolicy] on violation. The engine treats the resulting string as opaque
// and only ever compares it for equality.
package password
