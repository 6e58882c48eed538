package domain

import (
	"encoding/json"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в системе оркестрации.
type OrderStatus string

const (
	// OrderStatusOrdered — все позиции заказа подтверждены, сток списан (терминальный успех).
	OrderStatusOrdered OrderStatus = "ordered"
	// OrderStatusPendingBuyerLookup — заказ принят, но identity-сервис не смог вернуть id покупателя.
	OrderStatusPendingBuyerLookup OrderStatus = "pending_buyer_lookup_failed"
	// OrderStatusPendingItemNotFound — каталог не ответил на запрос товара.
	OrderStatusPendingItemNotFound OrderStatus = "pending_item_not_found"
	// OrderStatusPendingStockUpdate — списание стока по одной из позиций не прошло.
	OrderStatusPendingStockUpdate OrderStatus = "pending_stock_update_failed"
	// OrderStatusCanceled — заказ отменён, сток восстановлен (терминальный).
	OrderStatusCanceled OrderStatus = "canceled"
)

// PendingStatuses перечисляет статусы, которые подхватывает reconciler.
func PendingStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPendingBuyerLookup,
		OrderStatusPendingItemNotFound,
		OrderStatusPendingStockUpdate,
	}
}

// IsPending сообщает, ждёт ли статус фонового дорешивания.
func (s OrderStatus) IsPending() bool {
	switch s {
	case OrderStatusPendingBuyerLookup, OrderStatusPendingItemNotFound, OrderStatusPendingStockUpdate:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса дальнейших переходов нет.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusOrdered || s == OrderStatusCanceled
}

// LineItemRequest — одна позиция исходного запроса на заказ.
// Тот же формат сериализуется в снапшот для повторной обработки.
type LineItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

// OrderLine представляет подтверждённую (или требующую повтора) позицию заказа.
type OrderLine struct {
	ID        string
	ProductID int64
	// Qty — количество единиц; всегда > 0.
	Qty       int32
	CreatedAt time.Time
}

// Order агрегирует заказ, его позиции и снапшот исходного запроса.
type Order struct {
	ID string
	// BuyerID пуст до успешного резолва через identity-сервис; после — не меняется.
	BuyerID string
	// BuyerEmail заполняется всегда: единственная durable-связь с покупателем,
	// если резолв id не удался.
	BuyerEmail string
	Status     OrderStatus
	// OriginalRequestJSON — сериализованный []LineItemRequest, снятый до первого
	// удалённого вызова. Reconciler восстанавливает запрос только отсюда.
	OriginalRequestJSON string
	Lines               []OrderLine
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SnapshotRequests десериализует снапшот обратно в список позиций.
func (o *Order) SnapshotRequests() ([]LineItemRequest, error) {
	var reqs []LineItemRequest
	if err := json.Unmarshal([]byte(o.OriginalRequestJSON), &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// RestorationMap строит карту productId -> суммарное количество по позициям заказа.
// Используется компенсатором при отмене.
func (o *Order) RestorationMap() map[int64]int32 {
	m := make(map[int64]int32, len(o.Lines))
	for _, line := range o.Lines {
		m[line.ProductID] += line.Qty
	}
	return m
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerEmail == "" {
		errs = append(errs, ErrBuyerEmailRequired)
	}
	if o.OriginalRequestJSON == "" {
		errs = append(errs, ErrSnapshotRequired)
	}
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
	}

	return errs
}

// ValidateLineItemRequests проверяет входящий запрос до любых удалённых вызовов.
func ValidateLineItemRequests(reqs []LineItemRequest) error {
	if len(reqs) == 0 {
		return ErrEmptyOrderRequest
	}
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return ErrQuantityInvalid
		}
	}
	return nil
}

// MarshalSnapshot сериализует исходный запрос в снапшот.
// Снимается безусловно до первого удалённого вызова: при сбое на любом
// последующем шаге снапшот — единственный replayable-след запроса.
func MarshalSnapshot(reqs []LineItemRequest) (string, error) {
	data, err := json.Marshal(reqs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
