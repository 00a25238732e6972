package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeDialer struct {
	sent []*mail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*mail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func newTestSMTP(d dialer) *SMTPSender {
	s := NewSMTPSender(SMTPConfig{
		Host:          "smtp.example.com",
		Port:          587,
		From:          "no-reply@example.com",
		ResetLinkBase: "https://app.example.com/reset",
	}, nil)
	s.dialer = d
	s.now = func() time.Time { return now }
	return s
}

func TestRenderCode(t *testing.T) {
	r, err := Render(goVerify.Message{
		Kind:      goVerify.MessageCode,
		Purpose:   goVerify.PurposePasswordReset,
		Code:      "048213",
		ExpiresAt: now.Add(10 * time.Minute),
	}, "", now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if r.Subject != "Your password reset code" {
		t.Fatalf("unexpected subject %q", r.Subject)
	}
	if !strings.Contains(r.Text, "048213") || !strings.Contains(r.Text, "10 minutes") {
		t.Fatalf("unexpected text %q", r.Text)
	}
}

func TestRenderResetLink(t *testing.T) {
	r, err := Render(goVerify.Message{
		Kind:      goVerify.MessageResetLink,
		Token:     "pr1.abc.def",
		ExpiresAt: now.Add(30 * time.Minute),
	}, "https://app.example.com/reset?lang=en", now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(r.Text, "https://app.example.com/reset?lang=en&token=pr1.abc.def") {
		t.Fatalf("unexpected link in %q", r.Text)
	}

	if _, err := Render(goVerify.Message{Kind: goVerify.MessageResetLink, Token: "t"}, "", now); err == nil {
		t.Fatalf("expected error without a link base")
	}
	if _, err := Render(goVerify.Message{Kind: "fax"}, "", now); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestSMTPSenderSends(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSMTP(d)

	err := s.Send(context.Background(), goVerify.Message{
		Kind:      goVerify.MessageCode,
		Recipient: "alice@example.com",
		Purpose:   goVerify.PurposeSignIn,
		Code:      "123456",
		ExpiresAt: now.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("unexpected To %v", got)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(buf.String(), "123456") {
		t.Fatalf("code missing from message body")
	}
}

func TestSMTPSenderWrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	s := newTestSMTP(&fakeDialer{err: boom})

	err := s.Send(context.Background(), goVerify.Message{
		Kind:      goVerify.MessageCode,
		Recipient: "alice@example.com",
		Code:      "123456",
		ExpiresAt: now.Add(time.Minute),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestSMTPSenderHonorsCanceledContext(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSMTP(d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, goVerify.Message{Kind: goVerify.MessageCode, Code: "1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(d.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	if err := s.Send(context.Background(), goVerify.Message{
		Kind:      goVerify.MessageCode,
		Recipient: "alice@example.com",
		Purpose:   goVerify.PurposeSignIn,
		Code:      "048213",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	entries := logs.FilterMessage("verification message").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["code"] != "048213" || fields["recipient"] != "alice@example.com" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["token"]; ok {
		t.Fatalf("code message must not carry a token field")
	}
}
