// Package delivery provides [goVerify.Sender] implementations: SMTP through
// go-mail and a zap logger for local development.
//
// Senders render a [goVerify.Message] into a subject and body. They never
// decide whether a message should be sent; the engine already did.
package delivery
