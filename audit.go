package goVerify

import (
	"io"

	internalaudit "github.com/MrEthical07/goVerify/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one verification decision. It never carries codes, tokens
// or credential hashes.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	ZapSink        = internalaudit.ZapSink
	MultiSink      = internalaudit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(logger *zap.Logger) *ZapSink { return internalaudit.NewZapSink(logger) }
