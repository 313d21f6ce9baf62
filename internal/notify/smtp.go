package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// SMTPConfig carries the mail transport settings. An empty Host leaves the
// notifier in skip mode: alerts are logged instead of sent, which keeps
// development setups working without a mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends alert e-mails over plain SMTP.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// Configured reports whether a mail host is set.
func (n *SMTPNotifier) Configured() bool { return n.cfg.Host != "" }

// SendAlert delivers one alert e-mail to the subscriber. When SMTP is not
// configured the alert is logged at info and dropped without error.
func (n *SMTPNotifier) SendAlert(ctx context.Context, sub models.Subscription, msg Message) error {
	if !n.Configured() {
		n.logger.Info("smtp not configured, skipping alert delivery",
			zap.String("email", sub.Email), zap.String("subject", msg.Subject))
		return nil
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		n.cfg.From, sub.Email, msg.Subject, msg.Body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.sendMail(addr, auth, n.cfg.From, []string{sub.Email}, []byte(body)); err != nil {
		return fmt.Errorf("send alert mail to %s: %w", sub.Email, err)
	}

	n.logger.Debug("alert mail sent", zap.String("email", sub.Email), zap.String("subject", msg.Subject))
	return nil
}
