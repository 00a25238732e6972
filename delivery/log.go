package delivery

import (
	"context"

	goVerify "github.com/MrEthical07/goVerify"
	"go.uber.org/zap"
)

// LogSender writes messages to a zap logger instead of delivering them.
// It prints codes and tokens in clear and is meant for local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("delivery")}
}

// Send implements [goVerify.Sender].
func (s *LogSender) Send(_ context.Context, msg goVerify.Message) error {
	fields := []zap.Field{
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient", msg.Recipient),
		zap.String("purpose", string(msg.Purpose)),
		zap.Time("expires_at", msg.ExpiresAt),
	}
	switch msg.Kind {
	case goVerify.MessageCode:
		fields = append(fields, zap.String("code", msg.Code))
	case goVerify.MessageResetLink:
		fields = append(fields, zap.String("token", msg.Token))
	}
	s.logger.Info("verification message", fields...)
	return nil
}
