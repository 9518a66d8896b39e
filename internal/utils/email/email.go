package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// sendFunc delivers a prepared message; replaced in tests.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendPredictionDigest mails the number of predictions logged in [from, to)
// to every configured recipient.
func (s *Sender) SendPredictionDigest(from, to time.Time, count int64) error {
	if len(s.cfg.DigestRecipients) == 0 {
		return fmt.Errorf("no digest recipients configured")
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = s.cfg.DigestRecipients
	e.Subject = fmt.Sprintf("Win probability gateway: %d predictions", count)

	// Format email body
	body := "Hello,\n\n"
	body += fmt.Sprintf(
		"Between %s and %s the gateway logged %d prediction requests.\n",
		from.UTC().Format("2006-01-02 15:04 MST"), to.UTC().Format("2006-01-02 15:04 MST"), count,
	)
	if count == 0 {
		body += "No match states were submitted in this period.\n"
	}
	body += "\nWin Probability Gateway"
	e.Text = []byte(body)

	// Send email
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send prediction digest to %v: %v", e.To, err)
		return fmt.Errorf("failed to send prediction digest: %w", err)
	}

	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
