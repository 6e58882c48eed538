package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/cache"
	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/gate"
	"github.com/vladislavdragonenkov/ordering/internal/service/saga"
)

const (
	myOrdersLimit       = 50
	productNameCacheTTL = 10 * time.Minute
	productNameCacheTag = "product-name"
)

// Handler обслуживает REST-операции заказов.
type Handler struct {
	orchestrator saga.Orchestrator
	orders       domain.OrderRepository
	identity     domain.IdentityService
	catalog      domain.CatalogService
	gate         *gate.Gate
	cache        cache.Cache
	logger       *log.Entry
}

// NewHandler создаёт HTTP-handler поверх оркестратора и репозитория заказов.
// cache может быть nil: тогда имена товаров всегда запрашиваются у каталога.
func NewHandler(
	orchestrator saga.Orchestrator,
	orders domain.OrderRepository,
	identity domain.IdentityService,
	catalog domain.CatalogService,
	callGate *gate.Gate,
	productCache cache.Cache,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		orchestrator: orchestrator,
		orders:       orders,
		identity:     identity,
		catalog:      catalog,
		gate:         callGate,
		cache:        productCache,
		logger:       logger,
	}
}

// CreateOrder принимает заказ и проводит его через сагу.
// Сбой зависимости не является ошибкой для клиента: заказ принят как pending.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.orchestrator.CreateOrder(r.Context(), UserEmail(r.Context()), toLineItemRequests(req.Items))
	if err != nil {
		if domain.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.WithError(err).Error("create order failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID: order.ID,
		Status:  string(order.Status),
	})
}

// MyOrders возвращает заказы текущего пользователя с именами товаров.
// Недоступность каталога деградирует ответ до списка без имён.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	email := UserEmail(r.Context())

	var buyer domain.User
	err := h.gate.Do(gate.DependencyIdentity, func() error {
		var callErr error
		buyer, callErr = h.identity.ResolveByEmail(r.Context(), email)
		return callErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", "")
			return
		}
		h.logger.WithError(err).Warn("buyer lookup failed for order listing")
		writeError(w, http.StatusServiceUnavailable, "identity_unavailable", "try again later")
		return
	}

	orders, err := h.orders.ListByBuyer(buyer.ID, myOrdersLimit)
	if err != nil {
		h.logger.WithError(err).Error("list orders failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	names := h.resolveProductNames(r.Context(), orders)

	result := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order, names))
	}
	writeJSON(w, http.StatusOK, result)
}

// CancelOrder отменяет заказ с компенсацией стока.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	order, err := h.orchestrator.Cancel(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order_not_found", "")
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("cancel order failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// resolveProductNames собирает имена товаров для набора заказов.
// Сначала кэш, затем батч-запрос в каталог; любые сбои деградируют до пустых имён.
func (h *Handler) resolveProductNames(ctx context.Context, orders []domain.Order) map[int64]string {
	ids := make([]int64, 0)
	seen := make(map[int64]struct{})
	for _, order := range orders {
		for _, line := range order.Lines {
			if _, ok := seen[line.ProductID]; !ok {
				seen[line.ProductID] = struct{}{}
				ids = append(ids, line.ProductID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names := make(map[int64]string, len(ids))
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if name, ok := h.cachedName(ctx, id); ok {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names
	}

	var products []domain.Product
	err := h.gate.Do(gate.DependencyCatalogRead, func() error {
		var callErr error
		products, callErr = h.catalog.BatchGetProducts(ctx, missing)
		return callErr
	})
	if err != nil {
		h.logger.WithError(err).Warn("product name lookup failed, responding without names")
		return names
	}

	for _, product := range products {
		names[product.ID] = product.Name
		h.storeName(ctx, product.ID, product.Name)
	}
	return names
}

func (h *Handler) cachedName(ctx context.Context, id int64) (string, bool) {
	if h.cache == nil {
		return "", false
	}
	name, err := h.cache.Get(ctx, h.cache.Key(productNameCacheTag, strconv.FormatInt(id, 10)))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.WithError(err).Debug("product name cache read failed")
		}
		return "", false
	}
	return name, true
}

func (h *Handler) storeName(ctx context.Context, id int64, name string) {
	if h.cache == nil || name == "" {
		return
	}
	key := h.cache.Key(productNameCacheTag, strconv.FormatInt(id, 10))
	if err := h.cache.Set(ctx, key, name, productNameCacheTTL); err != nil {
		h.logger.WithError(err).Debug("product name cache write failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
