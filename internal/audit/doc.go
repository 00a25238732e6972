// Package audit implements async event dispatching for verification decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record of who asked for what and how it ended.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit. That responsibility belongs to the Engine and flow functions.
//
// Events never carry plaintext codes, tokens or credential hashes.
package audit
