// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRequestCode, RunSubmitCode, RunConsumeReset, etc.)
// accepts a typed dependency struct of funcs and returns results without
// side-effects beyond those dependencies. Tests drive them with plain
// closures; the root package wires the real stores, codecs and senders.
//
// # Architecture boundaries
//
// Flow functions coordinate the code issuer, token codecs, send gate,
// credential provider, audit dispatcher and metrics. They do NOT own any of
// these resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goVerify (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
