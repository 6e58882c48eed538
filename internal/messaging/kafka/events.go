package kafka

import "time"

// EventType определяет тип события жизненного цикла заказа
type EventType string

const (
	// Заказ оформлен полностью — все удалённые шаги прошли.
	EventTypeOrderCreated EventType = "order.created"
	// Заказ принят, но застрял на одном из удалённых шагов.
	EventTypeOrderPending EventType = "order.pending"
	// Pending-заказ дорешён фоновым циклом до ordered.
	EventTypeOrderReconciled EventType = "order.reconciled"
	// Заказ отменён, остатки возвращены.
	EventTypeOrderCanceled EventType = "order.canceled"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "ordering.order.events"
	TopicDeadLetterQueue = "ordering.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers, которыми помечаются сообщения в DLQ
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	BuyerEmail string                 `json:"buyer_email"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, buyerEmail, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		BuyerEmail: buyerEmail,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
