package domain

import "errors"

var (
	// Ошибка отсутствующего бизнес-идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего телефона клиента.
	ErrPhoneRequired = errors.New("customer_phone_number is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition — попытка перевести заказ из терминального статуса.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrInvalidDateRange — начало интервала позже конца.
	ErrInvalidDateRange = errors.New("start date must be before or equal to end date")
	// ErrProcessorStopped — процессор больше не принимает команды.
	ErrProcessorStopped = errors.New("order processor stopped")
	// ErrAlreadyCompleted — повторная попытка завершить ответ на запрос.
	ErrAlreadyCompleted = errors.New("reply already completed")
)

// IsNotFound проверяет, что ошибка означает отсутствие заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsValidation сообщает, относится ли ошибка к проверке входящего запроса.
func IsValidation(err error) bool {
	return errors.Is(err, ErrOrderIDRequired) ||
		errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrPhoneRequired) ||
		errors.Is(err, ErrItemsRequired)
}
