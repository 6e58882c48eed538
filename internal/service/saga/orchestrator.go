package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/gate"
	"github.com/vladislavdragonenkov/ordering/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordering/internal/metrics"
)

// Orchestrator управляет сагой заказа: создание, фоновое дорешивание, отмена.
type Orchestrator interface {
	// CreateOrder проводит заказ по цепочке identity -> catalog-read -> catalog-write.
	// Сбой зависимости переводит заказ в pending и возвращается как успешно
	// принятый заказ; клиентские ошибки возвращаются без сохранения чего-либо.
	CreateOrder(ctx context.Context, buyerEmail string, reqs []domain.LineItemRequest) (domain.Order, error)
	// Resume повторно прогоняет pending-заказ по снапшоту исходного запроса.
	Resume(ctx context.Context, order domain.Order) error
	// Cancel отменяет заказ и компенсирует списанный сток.
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
}

// orchestrator реализует последовательность шагов саги поверх Remote Call Gate.
type orchestrator struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	gate     *gate.Gate
	identity domain.IdentityService
	catalog  domain.CatalogService
	logger   *log.Entry
	metrics  *metrics.OrderingMetrics
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	callGate *gate.Gate,
	identity domain.IdentityService,
	catalog domain.CatalogService,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	return &orchestrator{
		orders:   orders,
		outbox:   outbox,
		gate:     callGate,
		identity: identity,
		catalog:  catalog,
		logger:   logger,
		metrics:  metrics.NewOrderingMetrics(),
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	callGate *gate.Gate,
	identity domain.IdentityService,
	catalog domain.CatalogService,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	return &orchestrator{
		orders:   orders,
		outbox:   outbox,
		gate:     callGate,
		identity: identity,
		catalog:  catalog,
		logger:   logger,
	}
}

// CreateOrder выполняет шаги саги из §создания заказа.
// Ни один сбой зависимости не покидает эту границу неперехваченным:
// каждый такой путь заканчивается сохранённым pending-заказом.
func (o *orchestrator) CreateOrder(ctx context.Context, buyerEmail string, reqs []domain.LineItemRequest) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordSagaDuration(time.Since(start))
		}
	}()

	if err := domain.ValidateLineItemRequests(reqs); err != nil {
		return domain.Order{}, err
	}

	// Снапшот снимается до первого удалённого вызова: сбой на любом
	// последующем шаге оставляет replayable-след.
	snapshot, err := domain.MarshalSnapshot(reqs)
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal request snapshot: %w", err)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                  uuid.NewString(),
		BuyerEmail:          buyerEmail,
		OriginalRequestJSON: snapshot,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	buyer, err := o.resolveBuyer(ctx, buyerEmail)
	if err != nil {
		// Без id покупателя продолжать нечем: сохраняем заказ как pending и выходим.
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("buyer lookup failed, parking order")
		order.Status = domain.OrderStatusPendingBuyerLookup
		if persistErr := o.persistNew(&order); persistErr != nil {
			return domain.Order{}, persistErr
		}
		return order, nil
	}
	order.BuyerID = buyer.ID

	if err := o.processLines(ctx, &order, reqs); err != nil {
		// Клиентская ошибка (некорректное количество, нехватка стока):
		// ничего не сохраняем, ранние списания остаются принятыми.
		return domain.Order{}, err
	}

	if order.Status == "" {
		order.Status = domain.OrderStatusOrdered
	}
	if persistErr := o.persistNew(&order); persistErr != nil {
		return domain.Order{}, persistErr
	}
	return order, nil
}

// processLines обрабатывает позиции по одной: catalog-read -> проверка стока -> catalog-write.
// Сбой зависимости помечает заказ pending-статусом, добавляет проблемную позицию
// (чтобы retry знал, что повторять) и прекращает обработку остальных позиций:
// сток по уже пройденным позициям уже списан, и оператору нужен видимый частичный заказ.
func (o *orchestrator) processLines(ctx context.Context, order *domain.Order, reqs []domain.LineItemRequest) error {
	for _, req := range reqs {
		product, err := o.fetchProduct(ctx, req.ProductID)
		if err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": req.ProductID,
			}).Warn("product lookup failed")
			order.Status = domain.OrderStatusPendingItemNotFound
			o.appendLine(order, req)
			return nil
		}

		if product.StockQuantity < req.Quantity {
			// Нехватка стока — ошибка клиента, а не зависимостей: повтор позже
			// не исправит количество, которое выбрал покупатель.
			o.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": req.ProductID,
				"requested":  req.Quantity,
				"in_stock":   product.StockQuantity,
			}).Warn("insufficient stock, rejecting order")
			return fmt.Errorf("product %d: %w", req.ProductID, domain.ErrInsufficientStock)
		}

		if err := o.decrementStock(ctx, product, req.Quantity); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": req.ProductID,
			}).Warn("stock decrement failed")
			order.Status = domain.OrderStatusPendingStockUpdate
			o.appendLine(order, req)
			return nil
		}

		if o.metrics != nil {
			o.metrics.RecordStockDecrement()
		}
		o.appendLine(order, req)
	}
	return nil
}

// Resume повторяет оркестрацию для pending-заказа, восстанавливая запрос из снапшота.
// Прогоняется весь снапшот с начала; частичный прогресс предыдущей попытки
// не учитывается (см. DESIGN.md об открытом вопросе двойного списания).
func (o *orchestrator) Resume(ctx context.Context, order domain.Order) error {
	reqs, err := order.SnapshotRequests()
	if err != nil {
		return fmt.Errorf("restore snapshot for order %s: %w", order.ID, err)
	}

	if order.BuyerID == "" {
		buyer, err := o.resolveBuyer(ctx, order.BuyerEmail)
		if err != nil {
			return fmt.Errorf("re-resolve buyer for order %s: %w", order.ID, err)
		}
		order.BuyerID = buyer.ID
	}

	// Позиции пересобираются с нуля из снапшота, прежний частичный список
	// заменяется результатом этого прогона.
	order.Lines = order.Lines[:0]
	order.Status = ""

	if err := o.processLines(ctx, &order, reqs); err != nil {
		return fmt.Errorf("replay lines for order %s: %w", order.ID, err)
	}

	if order.Status == "" {
		order.Status = domain.OrderStatusOrdered
	}

	stillPending := order.Status.IsPending()
	order.UpdatedAt = time.Now().UTC()
	if err := o.orders.Save(order); err != nil {
		return fmt.Errorf("persist reconciled order %s: %w", order.ID, err)
	}

	if stillPending {
		o.emitEvent(&order, kafka.EventTypeOrderPending, nil)
		return fmt.Errorf("order %s still pending with status %s", order.ID, order.Status)
	}

	o.emitEvent(&order, kafka.EventTypeOrderReconciled, nil)
	if o.metrics != nil {
		o.metrics.RecordOrderReconciled()
	}
	return nil
}

// Cancel компенсирует заказ: переводит статус в canceled и возвращает сток.
// Сначала CAS статуса, потом компенсация: из параллельных отмен сток
// восстанавливает только победитель CAS, остальные видят canceled и выходят.
func (o *orchestrator) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	order, won, err := o.claimCancellation(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !won {
		o.logger.WithField("order_id", order.ID).Debug("order already canceled, skipping compensation")
		return order, nil
	}

	if restore := order.RestorationMap(); len(restore) > 0 {
		// Best-effort: недовосстановленный сток менее вреден, чем заказ,
		// который невозможно отменить.
		err := o.gate.Do(gate.DependencyCatalogWrite, func() error {
			return o.catalog.RestoreStock(ctx, restore)
		})
		if err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Warn("stock restoration failed, canceling anyway")
		}
	}

	o.emitEvent(&order, kafka.EventTypeOrderCanceled, nil)
	if o.metrics != nil {
		o.metrics.RecordOrderCanceled()
	}
	return order, nil
}

// claimCancellation одним CAS переводит заказ в canceled.
// won=false означает, что заказ уже отменён (этим или параллельным вызовом) и
// компенсацию выполнять нельзя.
func (o *orchestrator) claimCancellation(orderID string) (domain.Order, bool, error) {
	const maxRetries = 3

	order, err := o.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, false, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if order.Status == domain.OrderStatusCanceled {
			return order, false, nil
		}

		order.Status = domain.OrderStatusCanceled
		order.UpdatedAt = time.Now().UTC()
		saveErr := o.orders.Save(order)
		if saveErr == nil {
			order.Version++
			return order, true, nil
		}
		if !domain.IsVersionConflict(saveErr) {
			o.logger.WithError(saveErr).WithField("order_id", order.ID).Error("failed to persist cancellation")
			return domain.Order{}, false, fmt.Errorf("persist cancellation for order %s: %w", order.ID, saveErr)
		}

		// Конфликт версий: перечитываем — параллельная отмена могла победить.
		order, err = o.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("reload order after conflict: %w", err)
		}
	}

	return domain.Order{}, false, domain.ErrOrderVersionConflict
}

func (o *orchestrator) resolveBuyer(ctx context.Context, email string) (domain.User, error) {
	var buyer domain.User
	err := o.gate.Do(gate.DependencyIdentity, func() error {
		var callErr error
		buyer, callErr = o.identity.ResolveByEmail(ctx, email)
		return callErr
	})
	return buyer, err
}

func (o *orchestrator) fetchProduct(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := o.gate.Do(gate.DependencyCatalogRead, func() error {
		var callErr error
		product, callErr = o.catalog.GetProduct(ctx, id)
		return callErr
	})
	return product, err
}

func (o *orchestrator) decrementStock(ctx context.Context, product domain.Product, qty int32) error {
	return o.gate.Do(gate.DependencyCatalogWrite, func() error {
		return o.catalog.AdjustStock(ctx, product.ID, product.StockQuantity-qty)
	})
}

func (o *orchestrator) appendLine(order *domain.Order, req domain.LineItemRequest) {
	order.Lines = append(order.Lines, domain.OrderLine{
		ID:        uuid.NewString(),
		ProductID: req.ProductID,
		Qty:       req.Quantity,
		CreatedAt: time.Now().UTC(),
	})
}

// persistNew сохраняет только что созданный заказ и эмитит событие жизненного цикла.
func (o *orchestrator) persistNew(order *domain.Order) error {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return fmt.Errorf("order invariants violated: %v", errs)
	}
	if err := o.orders.Create(*order); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return fmt.Errorf("persist order %s: %w", order.ID, err)
	}

	if order.Status == domain.OrderStatusOrdered {
		o.emitEvent(order, kafka.EventTypeOrderCreated, nil)
	} else {
		o.emitEvent(order, kafka.EventTypeOrderPending, map[string]interface{}{
			"pending_kind": string(order.Status),
		})
	}
	if o.metrics != nil {
		o.metrics.RecordOrderCreated(string(order.Status))
	}
	return nil
}

// persistStatus меняет статус заказа с повтором при конфликте версий.
func (o *orchestrator) persistStatus(order *domain.Order, newStatus domain.OrderStatus) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order.Status = newStatus
		order.UpdatedAt = time.Now().UTC()

		err := o.orders.Save(*order)
		if err == nil {
			order.Version++
			return nil
		}

		if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
			fresh, loadErr := o.orders.Get(order.ID)
			if loadErr != nil {
				return fmt.Errorf("reload order after conflict: %w", loadErr)
			}
			// Если параллельная отмена уже довела заказ до canceled, выходим без повтора.
			if fresh.Status == newStatus {
				*order = fresh
				return nil
			}
			*order = fresh
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}

		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status")
		return fmt.Errorf("persist status for order %s: %w", order.ID, err)
	}

	return domain.ErrOrderVersionConflict
}

// emitEvent кладёт событие жизненного цикла заказа в transactional outbox.
func (o *orchestrator) emitEvent(order *domain.Order, eventType kafka.EventType, payload map[string]interface{}) {
	if o.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["buyer_email"] = order.BuyerEmail
	payload["status"] = string(order.Status)
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

var _ Orchestrator = (*orchestrator)(nil)
