package notify

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingSender(t *testing.T, sendErr error) (*SMTPSender, *[]capturedMail) {
	t.Helper()
	var sent []capturedMail
	s := NewSMTPSender(SMTPConfig{
		Host:        "smtp.example.com",
		Port:        "587",
		Username:    "alerts@example.com",
		AppPassword: "app-password",
	}, zerolog.Nop())
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	return s, &sent
}

func TestSMTPSender_Send(t *testing.T) {
	s, sent := newCapturingSender(t, nil)

	err := s.Send(context.Background(), "alice@example.com", "Price Alert Notification for AAPL", "Alert for AAPL: The price has dropped below the threshold.")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", m.addr)
	assert.Equal(t, "alerts@example.com", m.from)
	assert.Equal(t, []string{"alice@example.com"}, m.to)

	head, body, found := strings.Cut(m.msg, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "Alert for AAPL: The price has dropped below the threshold.", body)
	assert.Contains(t, head, "From: alerts@example.com\r\n")
	assert.Contains(t, head, "To: alice@example.com\r\n")
	assert.Contains(t, head, "Subject: Price Alert Notification for AAPL\r\n")
	assert.Contains(t, head, "Content-Type: text/plain; charset=UTF-8")
}

func TestSMTPSender_FailureIsDeliveryError(t *testing.T) {
	s, _ := newCapturingSender(t, errors.New("535 authentication failed"))

	err := s.Send(context.Background(), "alice@example.com", "s", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Contains(t, err.Error(), "535 authentication failed")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s, sent := newCapturingSender(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, "alice@example.com", "s", "b")
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Empty(t, *sent)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	err := s.Send(context.Background(), "bob@example.com", "subject", "body")
	assert.ErrorIs(t, err, ErrDryRun)
	assert.NotErrorIs(t, err, ErrDelivery)
	assert.Contains(t, buf.String(), `"to":"bob@example.com"`)
	assert.Contains(t, buf.String(), `"component":"notify"`)
}

func TestAlertMessage(t *testing.T) {
	subject, body := AlertMessage("TSLA", models.NotificationPriceDrop)
	assert.Equal(t, "Price Alert Notification for TSLA", subject)
	assert.Equal(t, "Alert for TSLA: The price has dropped below the threshold.", body)

	_, body = AlertMessage("TSLA", models.NotificationPriceRise)
	assert.Equal(t, "Alert for TSLA: The price has rose above the threshold.", body)
}
