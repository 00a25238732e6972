// Package outcome defines the result taxonomy shared by every verification
// operation in goVerify.
//
// # Kinds
//
//   - Invalid: malformed, forged, already consumed, or unknown. Rendered
//     exactly like "not found" so recipients cannot be enumerated.
//   - Expired: structurally valid but past deadline, including reset tokens
//     whose bound credential has changed.
//   - TooManyAttempts: the record's wrong-guess ceiling was reached.
//   - Misconfigured: the process secret is missing. Always a loud
//     operational failure, never folded into Invalid.
//
// Operations return these as wrapped sentinel errors; [KindOf] classifies them.
//
// # What this package must NOT do
//
//   - Import goVerify or any sibling package.
package outcome
