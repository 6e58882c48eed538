package domain

import (
	"context"
	"time"
)

// User — представление покупателя, которое возвращает identity-сервис.
type User struct {
	ID      string
	Email   string
	Name    string
	Role    string
	Address string
}

// Product — представление товара из каталога.
type Product struct {
	ID            int64
	Name          string
	Category      string
	PriceMinor    int64
	StockQuantity int32
}

// IdentityService описывает взаимодействие с сервисом покупателей.
type IdentityService interface {
	// ResolveByEmail возвращает покупателя по email или ErrUserNotFound.
	ResolveByEmail(ctx context.Context, email string) (User, error)
}

// CatalogService описывает взаимодействие с каталогом/складом.
type CatalogService interface {
	// GetProduct возвращает товар по id или ErrProductNotFound.
	GetProduct(ctx context.Context, id int64) (Product, error)
	// AdjustStock выставляет новое абсолютное значение остатка товара.
	AdjustStock(ctx context.Context, id int64, newQuantity int32) error
	// BatchGetProducts возвращает товары по списку id (для обогащения выдачи заказов).
	BatchGetProducts(ctx context.Context, ids []int64) ([]Product, error)
	// RestoreStock возвращает количества на склад при отмене заказа (компенсация).
	RestoreStock(ctx context.Context, quantities map[int64]int32) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
