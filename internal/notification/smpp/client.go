// Package smpp отправляет SMS через SMSC по протоколу SMPP.
package smpp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiorix/go-smpp/smpp"
	"github.com/fiorix/go-smpp/smpp/pdu"
	"github.com/fiorix/go-smpp/smpp/pdu/pdutext"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
)

const (
	defaultSubmitTimeout = 10 * time.Second
	defaultUnbindTimeout = 5 * time.Second
)

// ErrNotBound возвращается health-проверкой, пока сессия не установлена.
var ErrNotBound = errors.New("smpp session is not bound")

// Config задаёт параметры SMPP-сессии.
type Config struct {
	Enabled    bool
	Addr       string
	SystemID   string
	Password   string
	SystemType string
	// SourceAddr — адрес отправителя SMS.
	SourceAddr string
	SourceTON  uint8
	SourceNPI  uint8
	DestTON    uint8
	DestNPI    uint8
	// SubmitTimeout ограничивает ожидание submit_sm_resp.
	SubmitTimeout time.Duration
	// UnbindTimeout ограничивает ожидание закрытия сессии.
	UnbindTimeout time.Duration
}

// submitter — часть smpp.Transceiver, которой пользуется клиент.
type submitter interface {
	Submit(sm *smpp.ShortMessage) (*smpp.ShortMessage, error)
	Close() error
}

// Client — канал SMS-уведомлений. Безопасен для конкурентного использования.
type Client struct {
	cfg     Config
	tx      submitter
	bind    func() <-chan smpp.ConnStatus
	metrics *metrics.OrderMetrics
	logger  *log.Entry

	bound     atomic.Bool
	closeOnce sync.Once
	watchDone chan struct{}
}

// NewClient создаёт клиента. Сессия открывается в Start.
func NewClient(cfg Config, m *metrics.OrderMetrics, logger *log.Entry) *Client {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if cfg.UnbindTimeout <= 0 {
		cfg.UnbindTimeout = defaultUnbindTimeout
	}
	if logger == nil {
		logger = log.New().WithField("component", "smpp")
	}

	tr := &smpp.Transceiver{
		Addr:        cfg.Addr,
		User:        cfg.SystemID,
		Passwd:      cfg.Password,
		SystemType:  cfg.SystemType,
		RespTimeout: cfg.SubmitTimeout,
	}
	c := &Client{
		cfg:       cfg,
		tx:        tr,
		bind:      tr.Bind,
		metrics:   m,
		logger:    logger,
		watchDone: make(chan struct{}),
	}
	tr.Handler = c.handlePDU
	return c
}

// Start открывает transceiver-сессию и следит за её состоянием.
// Выключенный канал сессию не открывает.
func (c *Client) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		c.logger.Info("SMS channel is disabled, skipping SMPP bind")
		close(c.watchDone)
		return
	}

	statuses := c.bind()
	c.logger.WithField("addr", c.cfg.Addr).Info("binding SMPP transceiver")

	go func() {
		defer close(c.watchDone)
		for {
			select {
			case <-ctx.Done():
				return
			case status, ok := <-statuses:
				if !ok {
					c.bound.Store(false)
					return
				}
				c.handleStatus(status)
			}
		}
	}()
}

func (c *Client) handleStatus(status smpp.ConnStatus) {
	entry := c.logger.WithField("status", status.Status().String())
	if status.Status() == smpp.Connected {
		c.bound.Store(true)
		entry.Info("SMPP session bound")
		return
	}
	c.bound.Store(false)
	if err := status.Error(); err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("SMPP session is down")
}

func (c *Client) handlePDU(p pdu.Body) {
	c.logger.WithField("pdu", p.Header().ID.String()).Debug("received PDU from SMSC")
}

// Enabled сообщает, включён ли канал в конфигурации.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Bound сообщает, установлена ли сессия с SMSC.
func (c *Client) Bound() bool {
	return c.bound.Load()
}

// SendText отправляет одно SMS. Ошибки логируются, наружу возвращается только признак успеха.
func (c *Client) SendText(_ context.Context, phone, body string) bool {
	entry := c.logger.WithField("phone", phone)
	if !c.cfg.Enabled {
		entry.Debug("SMS channel disabled, message not sent")
		return false
	}
	if !c.Bound() {
		entry.Warn("SMPP session not bound, message not sent")
		return false
	}

	resp, err := c.tx.Submit(&smpp.ShortMessage{
		Src:           c.cfg.SourceAddr,
		Dst:           phone,
		Text:          pdutext.Raw(body),
		SourceAddrTON: c.cfg.SourceTON,
		SourceAddrNPI: c.cfg.SourceNPI,
		DestAddrTON:   c.cfg.DestTON,
		DestAddrNPI:   c.cfg.DestNPI,
	})
	if err != nil {
		entry.WithError(err).Error("failed to submit SMS")
		return false
	}

	c.metrics.RecordSMSSent()
	entry.WithField("message_id", resp.RespID()).Info("SMS submitted")
	return true
}

// Check проверяет сессию для health-проверки: выключенный канал считается здоровым.
func (c *Client) Check(_ context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	if !c.Bound() {
		return ErrNotBound
	}
	return nil
}

// Close отправляет unbind и закрывает соединение, не дольше UnbindTimeout.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if !c.cfg.Enabled {
			return
		}
		done := make(chan error, 1)
		go func() { done <- c.tx.Close() }()

		select {
		case err = <-done:
		case <-time.After(c.cfg.UnbindTimeout):
			c.logger.Warn("SMPP unbind timed out")
		}
		c.bound.Store(false)
		c.logger.Info("SMPP session closed")
	})
	return err
}
