// Package notify рассылает уведомления клиенту по заказу.
package notify

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
)

// Result — исход попытки по одному каналу.
type Result string

const (
	Delivered Result = metrics.NotificationDelivered
	Failed    Result = metrics.NotificationFailed
	Skipped   Result = metrics.NotificationSkipped
)

const (
	channelSMS   = "sms"
	channelEmail = "email"
)

// Report описывает исход уведомлений. Используется только для логов и метрик.
type Report struct {
	SMS   Result
	Email Result
}

// SMSBody — текст SMS о заказе.
func SMSBody(orderID string) string {
	return fmt.Sprintf("Your order %s has been processed", orderID)
}

// EmailSubject — тема письма о заказе.
func EmailSubject(orderID string) string {
	return fmt.Sprintf("Your order %s has been processed", orderID)
}

// EmailBody — текст письма о заказе.
func EmailBody(orderID string) string {
	return fmt.Sprintf("Thank you for your order. Your order with ID %s has been successfully processed.", orderID)
}

// Dispatcher последовательно отправляет SMS и email, по одной попытке на канал.
type Dispatcher struct {
	sms     domain.TextSender
	email   domain.EmailSender
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewDispatcher создаёт диспетчер. Любой из каналов может быть nil.
func NewDispatcher(sms domain.TextSender, email domain.EmailSender, m *metrics.OrderMetrics, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "notify")
	}
	return &Dispatcher{sms: sms, email: email, metrics: m, logger: logger}
}

// Dispatch отправляет уведомления по завершённому заказу.
// Сбои каналов не влияют на результат обработки заказа.
func (d *Dispatcher) Dispatch(ctx context.Context, order domain.Order) Report {
	entry := d.logger.WithField("order_id", order.OrderID)

	report := Report{
		SMS:   d.guard(channelSMS, order, func() Result { return d.sendSMS(ctx, order) }),
		Email: d.guard(channelEmail, order, func() Result { return d.sendEmail(ctx, order) }),
	}

	d.metrics.RecordNotification(channelSMS, string(report.SMS))
	d.metrics.RecordNotification(channelEmail, string(report.Email))
	entry.WithFields(log.Fields{
		"sms":   report.SMS,
		"email": report.Email,
	}).Info("notifications dispatched")

	return report
}

// guard переводит панику канала в Failed, не затрагивая второй канал.
func (d *Dispatcher) guard(channel string, order domain.Order, send func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(log.Fields{
				"order_id": order.OrderID,
				"channel":  channel,
				"panic":    r,
			}).Error("notification channel panicked")
			res = Failed
		}
	}()
	return send()
}

func (d *Dispatcher) sendSMS(ctx context.Context, order domain.Order) Result {
	if d.sms == nil || !d.sms.Enabled() {
		d.logger.WithField("order_id", order.OrderID).Debug("SMS channel disabled, skipping")
		return Skipped
	}
	if d.sms.SendText(ctx, order.CustomerPhone, SMSBody(order.OrderID)) {
		return Delivered
	}
	return Failed
}

func (d *Dispatcher) sendEmail(ctx context.Context, order domain.Order) Result {
	if order.CustomerEmail == "" {
		return Skipped
	}
	if d.email == nil || !d.email.Enabled() {
		d.logger.WithField("order_id", order.OrderID).Debug("email channel disabled, skipping")
		return Skipped
	}
	if d.email.SendEmail(ctx, order.CustomerEmail, EmailSubject(order.OrderID), EmailBody(order.OrderID)) {
		return Delivered
	}
	return Failed
}
