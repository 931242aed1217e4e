package domain

import "context"

// TextSender отправляет SMS. Ошибки не пробрасываются: результат — признак доставки.
type TextSender interface {
	SendText(ctx context.Context, phone, body string) bool
	Enabled() bool
}

// EmailSender отправляет письма. Ошибки не пробрасываются: результат — признак доставки.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
	Enabled() bool
}

// EventPublisher публикует события жизненного цикла заказа во внешнюю шину.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, order Order, outcome Outcome) error
}
