// AngelaMos | 2026
// sender.go

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/member-portal/internal/config"
)

type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers one message. Callers treat a failure as non-fatal to
// any state change that was already committed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from: cfg.From,
		dialer: gomail.NewDialer(
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
		),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("send mail: no recipient")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTMLBody != "" {
		m.SetBody("text/html", msg.HTMLBody)
		if msg.PlainBody != "" {
			m.AddAlternative("text/plain", msg.PlainBody)
		}
	} else {
		m.SetBody("text/plain", msg.PlainBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the logger instead of delivering them.
// Used when no SMTP host is configured outside production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outbound email",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.PlainBody,
	)
	return nil
}

func NewSender(cfg config.SMTPConfig, logger *slog.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
