// Package notify delivers price alert emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
)

// ErrDelivery is returned when a message could not be handed to the relay.
var ErrDelivery = errors.New("notification delivery failed")

// ErrDryRun is returned by LogSender. The message was logged but never left
// the process, so callers must not record it as delivered.
var ErrDryRun = errors.New("notification not sent: dry run")

// Sender delivers a single plain-text message
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds relay credentials
type SMTPConfig struct {
	Host        string
	Port        string
	Username    string
	AppPassword string
	From        string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends through an authenticated SMTP relay with STARTTLS
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	log      zerolog.Logger
}

// NewSMTPSender creates a sender. From defaults to the login name.
func NewSMTPSender(cfg SMTPConfig, log zerolog.Logger) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{
		cfg:      cfg,
		sendMail: smtp.SendMail,
		log:      log.With().Str("component", "smtp").Logger(),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.AppPassword, s.cfg.Host)
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	msg := buildMessage(s.cfg.From, to, subject, body)

	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: to %s: %v", ErrDelivery, to, err)
	}

	s.log.Info().Str("to", to).Str("subject", subject).Msg("Email sent successfully")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	var msg strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// LogSender logs messages instead of sending them
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a dry-run sender
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("Email not sent, SMTP is not configured")
	return ErrDryRun
}

// AlertMessage returns the subject and body for a threshold breach
func AlertMessage(symbol, notificationType string) (subject, body string) {
	condition := "dropped below the threshold"
	if notificationType == models.NotificationPriceRise {
		condition = "rose above the threshold"
	}
	subject = fmt.Sprintf("Price Alert Notification for %s", symbol)
	body = fmt.Sprintf("Alert for %s: The price has %s.", symbol, condition)
	return subject, body
}
