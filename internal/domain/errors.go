package domain

import "errors"

var (
	// ErrEmptyOrderRequest — запрос не содержит ни одной позиции.
	ErrEmptyOrderRequest = errors.New("order request must contain at least one line item")
	// ErrQuantityInvalid — количество в позиции не положительное.
	ErrQuantityInvalid = errors.New("line item quantity must be greater than zero")
	// ErrInsufficientStock — запрошено больше, чем есть на складе (клиентская ошибка, не pending).
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	// ErrBuyerEmailRequired — у заказа нет email покупателя.
	ErrBuyerEmailRequired = errors.New("buyer email is required")
	// ErrSnapshotRequired — заказ сохраняется без снапшота исходного запроса.
	ErrSnapshotRequired = errors.New("original request snapshot is required")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrUserNotFound — identity-сервис не знает такого покупателя.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound — каталог не знает такого товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsClientError отделяет ошибки, которые возвращаются вызывающему как есть
// и никогда не переводят заказ в pending.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyOrderRequest) ||
		errors.Is(err, ErrQuantityInvalid) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrOrderNotFound)
}
