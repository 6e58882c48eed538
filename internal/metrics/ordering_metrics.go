package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderingMetrics содержит метрики оркестрации заказов.
type OrderingMetrics struct {
	// Счётчики результатов оформления с разбивкой по статусу
	ordersCreated *prometheus.CounterVec

	// Счётчики compensations и дорешивания
	ordersReconciled prometheus.Counter
	ordersCanceled   prometheus.Counter

	// Гистограмма времени прохода саги
	sagaDuration prometheus.Histogram

	// Счётчики удалённых операций со складом
	stockDecrements prometheus.Counter

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewOrderingMetrics создаёт новый экземпляр метрик оркестрации.
func NewOrderingMetrics() *OrderingMetrics {
	return newOrderingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderingMetricsWithRegisterer(registerer prometheus.Registerer) *OrderingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderingMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordering_orders_created_total",
			Help: "Total number of orders accepted, labeled by resulting status",
		}, []string{"status"}),
		ordersReconciled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_orders_reconciled_total",
			Help: "Total number of pending orders completed by reconciliation",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_orders_canceled_total",
			Help: "Total number of orders canceled with compensation",
		}),
		sagaDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ordering_saga_duration_seconds",
			Help:    "Duration of order saga passes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stockDecrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_stock_decrements_total",
			Help: "Total number of remote stock decrements applied",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик принятых заказов для данного статуса.
func (m *OrderingMetrics) RecordOrderCreated(status string) {
	m.ordersCreated.WithLabelValues(status).Inc()
}

// RecordOrderReconciled увеличивает счётчик дорешённых заказов.
func (m *OrderingMetrics) RecordOrderReconciled() {
	m.ordersReconciled.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *OrderingMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordSagaDuration записывает время прохода саги.
func (m *OrderingMetrics) RecordSagaDuration(duration time.Duration) {
	m.sagaDuration.Observe(duration.Seconds())
}

// RecordStockDecrement увеличивает счётчик применённых списаний остатков.
func (m *OrderingMetrics) RecordStockDecrement() {
	m.stockDecrements.Inc()
}

// RecordOutboxEvent увеличивает счётчик поставленных в outbox событий.
func (m *OrderingMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
