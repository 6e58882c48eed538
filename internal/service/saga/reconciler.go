package saga

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

const defaultReconcileInterval = 5 * time.Minute

var (
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordering_reconcile_runs_total",
		Help: "Total number of reconciliation cycles grouped by result.",
	}, []string{"result"})
	reconcileOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordering_reconcile_orders_total",
		Help: "Total number of pending orders processed by the reconciler grouped by outcome.",
	}, []string{"outcome"})
	reconcilePendingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ordering_reconcile_pending_orders",
		Help: "Number of pending orders observed during the last reconciliation scan.",
	})
)

// Policy решает, предпринимать ли очередную попытку для pending-заказа.
// Наблюдаемое поведение по умолчанию — «повторять вечно с фиксированным
// интервалом», но политика заменяемая.
type Policy interface {
	// ShouldRetry вызывается перед каждой попыткой; attempts — число уже
	// сделанных попыток в этом процессе.
	ShouldRetry(order domain.Order, attempts int) bool
}

// ForeverPolicy повторяет без ограничений — поведение по умолчанию.
type ForeverPolicy struct{}

// ShouldRetry всегда разрешает попытку.
func (ForeverPolicy) ShouldRetry(domain.Order, int) bool { return true }

// MaxAttemptsPolicy прекращает повторы после Limit попыток на заказ.
type MaxAttemptsPolicy struct {
	Limit int
}

// ShouldRetry разрешает попытку, пока лимит не исчерпан.
func (p MaxAttemptsPolicy) ShouldRetry(_ domain.Order, attempts int) bool {
	return attempts < p.Limit
}

// ReconcilerOptions задаёт параметры фонового дорешивателя.
type ReconcilerOptions struct {
	Logger   *log.Entry
	Interval time.Duration
	Policy   Policy
}

// ReconcilerOption настраивает Reconciler.
type ReconcilerOption func(*ReconcilerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) ReconcilerOption {
	return func(opts *ReconcilerOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между циклами.
func WithInterval(interval time.Duration) ReconcilerOption {
	return func(opts *ReconcilerOptions) {
		opts.Interval = interval
	}
}

// WithPolicy задаёт политику повторов.
func WithPolicy(policy Policy) ReconcilerOption {
	return func(opts *ReconcilerOptions) {
		opts.Policy = policy
	}
}

// Reconciler периодически сканирует pending-заказы и перезапускает для них оркестрацию.
// Единственный триггер — таймер; ручного пути запуска нет.
type Reconciler struct {
	orders       domain.OrderRepository
	orchestrator Orchestrator
	logger       *log.Entry
	interval     time.Duration
	policy       Policy

	// attempts считает попытки на заказ в рамках жизни процесса (для политик с лимитом).
	attempts map[string]int
}

// NewReconciler создаёт воркер дорешивания pending-заказов.
func NewReconciler(orders domain.OrderRepository, orchestrator Orchestrator, options ...ReconcilerOption) *Reconciler {
	opts := ReconcilerOptions{
		Interval: defaultReconcileInterval,
		Policy:   ForeverPolicy{},
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "reconciler")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultReconcileInterval
	}
	if opts.Policy == nil {
		opts.Policy = ForeverPolicy{}
	}

	return &Reconciler{
		orders:       orders,
		orchestrator: orchestrator,
		logger:       logger,
		interval:     opts.Interval,
		policy:       opts.Policy,
		attempts:     make(map[string]int),
	}
}

// Run запускает периодическое дорешивание до отмены ctx.
func (r *Reconciler) Run(ctx context.Context) {
	if r.orders == nil || r.orchestrator == nil {
		r.logger.Warn("reconciler is disabled: repository or orchestrator is nil")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл сканирования.
// Сбой одного заказа изолируется: остальная выборка обрабатывается дальше.
func (r *Reconciler) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	pending, err := r.orders.ListByStatuses(domain.PendingStatuses()...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		reconcileRunsTotal.WithLabelValues("error").Inc()
		r.logger.WithError(err).Warn("failed to list pending orders")
		return
	}

	reconcilePendingOrders.Set(float64(len(pending)))
	if len(pending) == 0 {
		reconcileRunsTotal.WithLabelValues("ok").Inc()
		return
	}

	r.logger.WithField("pending", len(pending)).Info("reconciliation cycle started")

	for _, order := range pending {
		if ctx.Err() != nil {
			return
		}

		if !r.policy.ShouldRetry(order, r.attempts[order.ID]) {
			reconcileOrdersTotal.WithLabelValues("skipped").Inc()
			continue
		}
		r.attempts[order.ID]++

		if err := r.orchestrator.Resume(ctx, order); err != nil {
			// Оставляем заказ в его pending-статусе до следующего цикла.
			reconcileOrdersTotal.WithLabelValues("failed").Inc()
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"status":   order.Status,
			}).Warn("order reconciliation failed")
			continue
		}

		delete(r.attempts, order.ID)
		reconcileOrdersTotal.WithLabelValues("reconciled").Inc()
		r.logger.WithField("order_id", order.ID).Info("order reconciled")
	}

	reconcileRunsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("reconciliation cycle finished")
}
