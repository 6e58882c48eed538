package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderingMetrics(t *testing.T) {
	metrics := newOrderingMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newOrderingMetricsWithRegisterer should not return nil")
	}

	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter vec should not be nil")
	}

	if metrics.ordersReconciled == nil {
		t.Error("ordersReconciled counter should not be nil")
	}

	if metrics.ordersCanceled == nil {
		t.Error("ordersCanceled counter should not be nil")
	}

	if metrics.sagaDuration == nil {
		t.Error("sagaDuration histogram should not be nil")
	}

	if metrics.stockDecrements == nil {
		t.Error("stockDecrements counter should not be nil")
	}

	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
}

func TestNewOrderingMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderingMetricsWithRegisterer(reg)
	second := newOrderingMetricsWithRegisterer(reg)

	if first.ordersReconciled != second.ordersReconciled {
		t.Error("expected the same counter instance on repeated registration")
	}
}

func TestRecordOrderCreated(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_orders_created_total",
		Help: "Test counter vec",
	}, []string{"status"})

	reg.MustRegister(ordersCreated)

	metrics := &OrderingMetrics{
		ordersCreated: ordersCreated,
	}

	metrics.RecordOrderCreated("ordered")
	metrics.RecordOrderCreated("ordered")
	metrics.RecordOrderCreated("pending_item_not_found")

	metric := &dto.Metric{}
	if err := ordersCreated.WithLabelValues("ordered").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0 for ordered, got %f", metric.Counter.GetValue())
	}

	pendingMetric := &dto.Metric{}
	if err := ordersCreated.WithLabelValues("pending_item_not_found").Write(pendingMetric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if pendingMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0 for pending, got %f", pendingMetric.Counter.GetValue())
	}
}

func TestRecordOrderReconciled(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersReconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_orders_reconciled_total",
		Help: "Test counter",
	})

	reg.MustRegister(ordersReconciled)

	metrics := &OrderingMetrics{
		ordersReconciled: ordersReconciled,
	}

	metrics.RecordOrderReconciled()
	metrics.RecordOrderReconciled()

	metric := &dto.Metric{}
	if err := ordersReconciled.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOrderCanceled(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersCanceled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_orders_canceled_total",
		Help: "Test counter",
	})

	reg.MustRegister(ordersCanceled)

	metrics := &OrderingMetrics{
		ordersCanceled: ordersCanceled,
	}

	metrics.RecordOrderCanceled()

	metric := &dto.Metric{}
	if err := ordersCanceled.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordSagaDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	sagaDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_saga_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(sagaDuration)

	metrics := &OrderingMetrics{
		sagaDuration: sagaDuration,
	}

	metrics.RecordSagaDuration(100 * time.Millisecond)
	metrics.RecordSagaDuration(500 * time.Millisecond)
	metrics.RecordSagaDuration(1 * time.Second)

	metric := &dto.Metric{}
	if err := sagaDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}

	// Check sum is approximately correct (0.1 + 0.5 + 1.0 = 1.6)
	sum := metric.Histogram.GetSampleSum()
	if sum < 1.5 || sum > 1.7 {
		t.Errorf("expected sum around 1.6, got %f", sum)
	}
}

func TestRecordStockDecrement(t *testing.T) {
	reg := prometheus.NewRegistry()

	stockDecrements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_stock_decrements_total",
		Help: "Test counter",
	})

	reg.MustRegister(stockDecrements)

	metrics := &OrderingMetrics{
		stockDecrements: stockDecrements,
	}

	metrics.RecordStockDecrement()
	metrics.RecordStockDecrement()
	metrics.RecordStockDecrement()

	metric := &dto.Metric{}
	if err := stockDecrements.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 3.0 {
		t.Errorf("expected counter value 3.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOutboxEvent(t *testing.T) {
	reg := prometheus.NewRegistry()

	outboxEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_outbox_events_total",
		Help: "Test counter",
	})

	reg.MustRegister(outboxEvents)

	metrics := &OrderingMetrics{
		outboxEvents: outboxEvents,
	}

	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()

	metric := &dto.Metric{}
	if err := outboxEvents.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}
