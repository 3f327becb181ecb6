package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

// Mailer sends scheduled report emails over SMTP
type Mailer struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
	logger *utils.Logger
}

// NewMailer creates the email sink. Missing credentials yield a disabled
// sink, matching the Telegram behavior.
func NewMailer(cfg config.EmailConfig, logger *utils.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: logger.Named("mailer")}
	if cfg.Username == "" || cfg.Password == "" || len(cfg.Recipients) == 0 {
		m.logger.Info("Email sink disabled, no SMTP credentials or recipients configured")
		return m
	}
	m.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	return m
}

// Enabled reports whether emails will actually be delivered
func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

// Send delivers one HTML email to all configured recipients
func (m *Mailer) Send(subject, htmlBody string) error {
	if m.dialer == nil {
		return fmt.Errorf("%w: email sink disabled", utils.ErrProvider)
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.cfg.Recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: email send: %v", utils.ErrProvider, err)
	}
	return nil
}
