// Package email отправляет письма через SMTP.
package email

import (
	"context"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Config задаёт параметры SMTP.
type Config struct {
	Enabled  bool
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Client — канал email-уведомлений.
type Client struct {
	cfg    Config
	dialer dialer
	logger *log.Entry
}

// NewClient создаёт SMTP-клиента. Соединение открывается на каждое письмо.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "email")
	}
	return &Client{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// Enabled сообщает, включён ли канал.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// SendEmail отправляет текстовое письмо. Ошибки логируются и не пробрасываются.
func (c *Client) SendEmail(_ context.Context, to, subject, body string) bool {
	entry := c.logger.WithField("to", to)
	if !c.cfg.Enabled {
		entry.Debug("email channel disabled, message not sent")
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := c.dialer.DialAndSend(msg); err != nil {
		entry.WithError(err).Error("failed to send email")
		return false
	}

	entry.Info("email sent")
	return true
}
