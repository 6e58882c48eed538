package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/gate"
	"github.com/vladislavdragonenkov/ordering/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordering/internal/service/identity"
	"github.com/vladislavdragonenkov/ordering/internal/storage/memory"
)

type sagaFixture struct {
	orders       domain.OrderRepository
	outbox       interface {
		domain.OutboxRepository
		AllPending() []domain.OutboxMessage
	}
	identity     *identity.MockService
	catalog      *catalog.MockService
	orchestrator Orchestrator
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	identityMock := identity.NewMockService()
	catalogMock := catalog.NewMockService()

	callGate := gate.NewGate(gate.DefaultSettings(), log.New().WithField("component", "gate-test"))
	orchestrator := NewOrchestratorWithoutMetrics(
		orders,
		outbox,
		callGate,
		identityMock,
		catalogMock,
		log.New().WithField("component", "saga-test"),
	)

	return &sagaFixture{
		orders:       orders,
		outbox:       outbox,
		identity:     identityMock,
		catalog:      catalogMock,
		orchestrator: orchestrator,
	}
}

func (f *sagaFixture) eventTypes() []string {
	messages := f.outbox.AllPending()
	types := make([]string, 0, len(messages))
	for _, msg := range messages {
		types = append(types, msg.EventType)
	}
	return types
}

func containsEvent(types []string, want string) bool {
	for _, et := range types {
		if et == want {
			return true
		}
	}
	return false
}

func TestCreateOrder_Success(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, Name: "keyboard", StockQuantity: 7})
	f.catalog.Seed(domain.Product{ID: 20, Name: "mouse", StockQuantity: 3})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
		{ProductID: 20, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if order.Status != domain.OrderStatusOrdered {
		t.Fatalf("expected status ordered, got %s", order.Status)
	}
	if order.BuyerID != "buyer-1" {
		t.Fatalf("expected resolved buyer, got %q", order.BuyerID)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Lines))
	}

	// Сток списан удалённо.
	if got := f.catalog.Stock(10); got != 5 {
		t.Fatalf("expected stock 5 for product 10, got %d", got)
	}
	if got := f.catalog.Stock(20); got != 2 {
		t.Fatalf("expected stock 2 for product 20, got %d", got)
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("stored order not found: %v", err)
	}
	if stored.OriginalRequestJSON == "" {
		t.Fatal("expected request snapshot to be persisted")
	}

	if !containsEvent(f.eventTypes(), "order.created") {
		t.Fatalf("expected order.created event, got %v", f.eventTypes())
	}
}

func TestCreateOrder_EmptyRequest(t *testing.T) {
	f := newSagaFixture(t)

	if _, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", nil); !errors.Is(err, domain.ErrEmptyOrderRequest) {
		t.Fatalf("expected ErrEmptyOrderRequest, got %v", err)
	}
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})

	_, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 0},
	})
	if !errors.Is(err, domain.ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}

	// Заказ не сохранён, вызовы не делались.
	if f.identity.ResolveCalls != 0 {
		t.Fatalf("expected no identity calls, got %d", f.identity.ResolveCalls)
	}
}

func TestCreateOrder_BuyerLookupFailed(t *testing.T) {
	f := newSagaFixture(t)
	f.identity.SetResolveErr(errors.New("identity unavailable"))
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("dependency failure must not surface as an error: %v", err)
	}

	if order.Status != domain.OrderStatusPendingBuyerLookup {
		t.Fatalf("expected pending_buyer_lookup_failed, got %s", order.Status)
	}
	if order.BuyerID != "" {
		t.Fatalf("expected empty buyer id, got %q", order.BuyerID)
	}

	// Каталог не трогали: обработка остановилась на identity.
	if f.catalog.GetCalls != 0 {
		t.Fatalf("expected no catalog calls, got %d", f.catalog.GetCalls)
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("pending order must be persisted: %v", err)
	}
	reqs, err := stored.SnapshotRequests()
	if err != nil {
		t.Fatalf("snapshot must be replayable: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ProductID != 10 {
		t.Fatalf("unexpected snapshot contents: %+v", reqs)
	}

	if !containsEvent(f.eventTypes(), "order.pending") {
		t.Fatalf("expected order.pending event, got %v", f.eventTypes())
	}
}

func TestCreateOrder_ProductLookupFailed(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.SetGetErr(errors.New("catalog unavailable"))

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("dependency failure must not surface as an error: %v", err)
	}

	if order.Status != domain.OrderStatusPendingItemNotFound {
		t.Fatalf("expected pending_item_not_found, got %s", order.Status)
	}
	// Проблемная позиция присутствует в заказе.
	if len(order.Lines) != 1 || order.Lines[0].ProductID != 10 {
		t.Fatalf("expected the failed line to be recorded, got %+v", order.Lines)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 1})

	_, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 5},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Ничего не сохранено и сток не тронут.
	orders, listErr := f.orders.ListByBuyer("buyer-1", 10)
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(orders) != 0 {
		t.Fatalf("client error must not persist anything, got %d orders", len(orders))
	}
	if got := f.catalog.Stock(10); got != 1 {
		t.Fatalf("expected stock unchanged, got %d", got)
	}
}

func TestCreateOrder_StockUpdateFailed(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})
	f.catalog.Seed(domain.Product{ID: 20, StockQuantity: 5})
	f.catalog.SetAdjustErr(errors.New("catalog write unavailable"))

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
		{ProductID: 20, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("dependency failure must not surface as an error: %v", err)
	}

	if order.Status != domain.OrderStatusPendingStockUpdate {
		t.Fatalf("expected pending_stock_update_failed, got %s", order.Status)
	}
	// Обработка остановилась на первой позиции, вторая не пошла в ход.
	if len(order.Lines) != 1 || order.Lines[0].ProductID != 10 {
		t.Fatalf("expected only the failed line, got %+v", order.Lines)
	}
}

func TestResume_CompletesPendingOrder(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.SetGetErr(errors.New("catalog down"))

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPendingItemNotFound {
		t.Fatalf("expected pending order, got %s", order.Status)
	}

	// Каталог ожил.
	f.catalog.SetGetErr(nil)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := f.orchestrator.Resume(context.Background(), stored); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	reconciled, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reconciled.Status != domain.OrderStatusOrdered {
		t.Fatalf("expected ordered after resume, got %s", reconciled.Status)
	}
	if len(reconciled.Lines) != 1 {
		t.Fatalf("expected 1 line after replay, got %d", len(reconciled.Lines))
	}
	if got := f.catalog.Stock(10); got != 3 {
		t.Fatalf("expected stock 3 after replay, got %d", got)
	}

	if !containsEvent(f.eventTypes(), "order.reconciled") {
		t.Fatalf("expected order.reconciled event, got %v", f.eventTypes())
	}
}

func TestResume_BuyerReResolved(t *testing.T) {
	f := newSagaFixture(t)
	f.identity.SetResolveErr(errors.New("identity down"))

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPendingBuyerLookup {
		t.Fatalf("expected pending_buyer_lookup_failed, got %s", order.Status)
	}

	f.identity.SetResolveErr(nil)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 4})

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := f.orchestrator.Resume(context.Background(), stored); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	reconciled, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reconciled.BuyerID != "buyer-1" {
		t.Fatalf("expected buyer re-resolved, got %q", reconciled.BuyerID)
	}
	if reconciled.Status != domain.OrderStatusOrdered {
		t.Fatalf("expected ordered, got %s", reconciled.Status)
	}
}

func TestResume_StillPending(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.SetGetErr(errors.New("catalog down"))

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := f.orchestrator.Resume(context.Background(), stored); err == nil {
		t.Fatal("expected error while dependency is still down")
	}

	after, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if after.Status != domain.OrderStatusPendingItemNotFound {
		t.Fatalf("expected order to stay pending, got %s", after.Status)
	}
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})
	f.catalog.Seed(domain.Product{ID: 20, StockQuantity: 5})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
		{ProductID: 20, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	canceled, err := f.orchestrator.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}

	// Карта восстановления совпадает с позициями заказа.
	if f.catalog.LastRestore[10] != 2 || f.catalog.LastRestore[20] != 3 {
		t.Fatalf("unexpected restoration map: %v", f.catalog.LastRestore)
	}
	if got := f.catalog.Stock(10); got != 5 {
		t.Fatalf("expected stock back to 5, got %d", got)
	}

	if !containsEvent(f.eventTypes(), "order.canceled") {
		t.Fatalf("expected order.canceled event, got %v", f.eventTypes())
	}
}

func TestCancel_SecondCancelIsNoop(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := f.orchestrator.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	restores := f.catalog.RestoreCalls

	again, err := f.orchestrator.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if again.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", again.Status)
	}

	// Компенсация выполняется не более одного раза.
	if f.catalog.RestoreCalls != restores {
		t.Fatalf("expected no extra restore calls, got %d", f.catalog.RestoreCalls)
	}
	if got := f.catalog.Stock(10); got != 5 {
		t.Fatalf("expected stock 5 after single compensation, got %d", got)
	}
}

// blockingRestoreCatalog задерживает RestoreStock, чтобы зафиксировать
// интерливинг параллельных отмен.
type blockingRestoreCatalog struct {
	*catalog.MockService
	entered chan struct{}
	release chan struct{}
}

func (c *blockingRestoreCatalog) RestoreStock(ctx context.Context, quantities map[int64]int32) error {
	c.entered <- struct{}{}
	<-c.release
	return c.MockService.RestoreStock(ctx, quantities)
}

func TestCancel_ConcurrentCancelRestoresOnce(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 7})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	blocking := &blockingRestoreCatalog{
		MockService: f.catalog,
		entered:     make(chan struct{}, 2),
		release:     make(chan struct{}),
	}
	callGate := gate.NewGate(gate.DefaultSettings(), log.New().WithField("component", "gate-test"))
	orchestrator := NewOrchestratorWithoutMetrics(
		f.orders,
		f.outbox,
		callGate,
		f.identity,
		blocking,
		log.New().WithField("component", "saga-test"),
	)

	firstDone := make(chan error, 1)
	go func() {
		_, cancelErr := orchestrator.Cancel(context.Background(), order.ID)
		firstDone <- cancelErr
	}()

	// Первая отмена выиграла CAS и стоит внутри RestoreStock.
	<-blocking.entered

	second, err := orchestrator.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if second.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", second.Status)
	}
	// Вторая отмена увидела canceled и не дошла до компенсации.
	if f.catalog.RestoreCalls != 0 {
		t.Fatalf("expected no restore from the losing cancel, got %d", f.catalog.RestoreCalls)
	}

	close(blocking.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	if f.catalog.RestoreCalls != 1 {
		t.Fatalf("expected exactly one restore call, got %d", f.catalog.RestoreCalls)
	}
	if got := f.catalog.Stock(10); got != 7 {
		t.Fatalf("expected stock restored exactly once to 7, got %d", got)
	}
}

func TestCancel_RestoreFailureDoesNotBlock(t *testing.T) {
	f := newSagaFixture(t)
	f.catalog.Seed(domain.Product{ID: 10, StockQuantity: 5})

	order, err := f.orchestrator.CreateOrder(context.Background(), "buyer@example.com", []domain.LineItemRequest{
		{ProductID: 10, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	f.catalog.RestoreErr = errors.New("catalog write down")

	canceled, err := f.orchestrator.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel must succeed even when restoration fails: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}
}

func TestCancel_UnknownOrder(t *testing.T) {
	f := newSagaFixture(t)

	if _, err := f.orchestrator.Cancel(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreateOrder_CircuitOpenParksOrder(t *testing.T) {
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	identityMock := identity.NewMockService()
	identityMock.SetResolveErr(errors.New("identity down"))
	catalogMock := catalog.NewMockService()

	callGate := gate.NewGate(gate.Settings{MaxFailures: 1, OpenTimeout: time.Minute}, log.New().WithField("component", "gate-test"))
	orchestrator := NewOrchestratorWithoutMetrics(orders, outbox, callGate, identityMock, catalogMock, log.New().WithField("component", "saga-test"))

	// Первый заказ открывает breaker.
	if _, err := orchestrator.CreateOrder(context.Background(), "a@example.com", []domain.LineItemRequest{{ProductID: 1, Quantity: 1}}); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	// Второй заказ fail-fast: identity больше не вызывается, заказ всё равно pending.
	calls := identityMock.ResolveCalls
	order, err := orchestrator.CreateOrder(context.Background(), "b@example.com", []domain.LineItemRequest{{ProductID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("second order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPendingBuyerLookup {
		t.Fatalf("expected pending_buyer_lookup_failed, got %s", order.Status)
	}
	if identityMock.ResolveCalls != calls {
		t.Fatalf("expected fail-fast without remote call, got %d calls", identityMock.ResolveCalls)
	}
}
