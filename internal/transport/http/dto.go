package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// CreateOrderRequest — тело POST /orders.
type CreateOrderRequest struct {
	Items []LineItemDTO `json:"items"`
}

// LineItemDTO — позиция заказа во входном запросе.
type LineItemDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

// CreateOrderResponse — ответ на оформление заказа.
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// OrderResponse — заказ в ответе GET /orders/my и PATCH /orders/{id}/cancel.
type OrderResponse struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Lines     []OrderLineResponse `json:"lines"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// OrderLineResponse — позиция заказа с именем товара (если удалось получить).
type OrderLineResponse struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int32  `json:"quantity"`
}

// ErrorResponse — единый формат ошибок API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toLineItemRequests(items []LineItemDTO) []domain.LineItemRequest {
	reqs := make([]domain.LineItemRequest, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, domain.LineItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return reqs
}

func toOrderResponse(order domain.Order, names map[int64]string) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderLineResponse{
			ProductID:   line.ProductID,
			ProductName: names[line.ProductID],
			Quantity:    line.Qty,
		})
	}
	return OrderResponse{
		ID:        order.ID,
		Status:    string(order.Status),
		Lines:     lines,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}
