package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPConfig configures [SMTPSender].
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	Username           string
	Password           string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
	// ResetLinkBase is the page that receives reset link tokens.
	ResetLinkBase string
}

// SMTPSender delivers codes and reset links by email.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer dialer
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPSender returns a sender dialing cfg.Host for every message.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negotiates STARTTLS when offered
	}

	return &SMTPSender{
		cfg:    cfg,
		dialer: d,
		logger: logger.With(zap.String("component", "smtp_sender"), zap.String("host", cfg.Host)),
		now:    time.Now,
	}
}

// Send implements [goVerify.Sender].
func (s *SMTPSender) Send(ctx context.Context, msg goVerify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rendered, err := Render(msg, s.cfg.ResetLinkBase, s.now())
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/plain", rendered.Text)
	m.AddAlternative("text/html", rendered.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("smtp send failed", zap.String("kind", string(msg.Kind)), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("message sent", zap.String("kind", string(msg.Kind)))
	return nil
}
