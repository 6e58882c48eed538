package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	// Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
	// ListByStatuses возвращает все заказы в любом из перечисленных статусов.
	// Reconciler использует этот метод для выборки pending-заказов.
	ListByStatuses(statuses ...OrderStatus) ([]Order, error)
	// Save применяет обновления к заказу (включая позиции) с учётом optimistic locking.
	Save(order Order) error
}
