package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/simorgh/advanced-logger/config"
)

// EmailChannel delivers alerts as plain-text mail over SMTP.
type EmailChannel struct {
	cfg config.EmailConfig
	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates the channel from config.
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "[Log Alert]"
	}
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (c *EmailChannel) Name() string { return "email" }

// Send builds the templated body and hands it to SMTP.
func (c *EmailChannel) Send(ctx context.Context, p Payload) error {
	if c.cfg.To == "" {
		return fmt.Errorf("email channel has no destination address")
	}

	subject := fmt.Sprintf("%s %s: %s", c.cfg.SubjectPrefix, p.Level, p.Message)

	var body strings.Builder
	fmt.Fprintf(&body, "Log Alert: %s\r\n\r\n", p.Level)
	fmt.Fprintf(&body, "Message: %s\r\n", p.Message)
	fmt.Fprintf(&body, "Category: %s\r\n", orNA(p.Category))
	fmt.Fprintf(&body, "Timestamp: %s\r\n", p.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&body, "URL: %s\r\n", orNA(p.URL))
	fmt.Fprintf(&body, "User ID: %s\r\n", userIDString(p.UserID))
	fmt.Fprintf(&body, "IP Address: %s\r\n", orNA(p.IPAddress))
	if ctxJSON := contextJSON(p.Context); ctxJSON != "" {
		fmt.Fprintf(&body, "\r\nContext:\r\n%s\r\n", ctxJSON)
	}

	from := c.cfg.From
	if from == "" {
		from = c.cfg.Username
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		from, c.cfg.To, subject, body.String())

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	if err := c.send(addr, auth, from, []string{c.cfg.To}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}
