package delivery

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
)

// Rendered is a message ready for a transport.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Render builds the subject and bodies for msg. linkBase is the page that
// accepts reset link tokens; the token is appended as the "token" query
// parameter.
func Render(msg goVerify.Message, linkBase string, now time.Time) (Rendered, error) {
	minutes := int(msg.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	switch msg.Kind {
	case goVerify.MessageCode:
		if msg.Code == "" {
			return Rendered{}, fmt.Errorf("delivery: code message without code")
		}
		subject := "Your sign-in code"
		if msg.Purpose == goVerify.PurposePasswordReset {
			subject = "Your password reset code"
		}
		text := fmt.Sprintf("Your code is %s. It expires in %d minutes.\n\nIf you did not ask for it, ignore this message.\n", msg.Code, minutes)
		html := fmt.Sprintf("<p>Your code is <strong>%s</strong>. It expires in %d minutes.</p><p>If you did not ask for it, ignore this message.</p>", msg.Code, minutes)
		return Rendered{Subject: subject, Text: text, HTML: html}, nil

	case goVerify.MessageResetLink:
		if msg.Token == "" {
			return Rendered{}, fmt.Errorf("delivery: reset link message without token")
		}
		link, err := resetLink(linkBase, msg.Token)
		if err != nil {
			return Rendered{}, err
		}
		text := fmt.Sprintf("Reset your password: %s\n\nThe link expires in %d minutes and stops working once used.\n", link, minutes)
		html := fmt.Sprintf(`<p><a href="%s">Reset your password</a></p><p>The link expires in %d minutes and stops working once used.</p>`, link, minutes)
		return Rendered{Subject: "Reset your password", Text: text, HTML: html}, nil

	default:
		return Rendered{}, fmt.Errorf("delivery: unknown message kind %q", msg.Kind)
	}
}

func resetLink(base, token string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("delivery: reset link base url not configured")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("delivery: reset link base url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
