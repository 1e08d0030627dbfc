package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты мутаций для label result.
const (
	ResultSuccess       = "success"
	ResultBusinessError = "business_error"
	ResultFailure       = "failure"
)

// CRMMetrics содержит метрики мутаций CRM.
type CRMMetrics struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge

	// Счётчики побочных эффектов
	customersCreated  prometheus.Counter
	productsRestocked prometheus.Counter
	outboxEvents      *prometheus.CounterVec
}

// NewCRMMetrics создаёт метрики в DefaultRegisterer.
func NewCRMMetrics() *CRMMetrics {
	return NewCRMMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCRMMetricsWithRegisterer создаёт метрики в указанном registerer (в тестах — отдельный registry).
func NewCRMMetricsWithRegisterer(registerer prometheus.Registerer) *CRMMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CRMMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "crm_mutations_total",
			Help: "Total number of CRM mutations grouped by operation and result",
		}, []string{"operation", "result"}),
		mutationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "crm_mutation_duration_seconds",
			Help:    "Duration of CRM mutations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "crm_mutations_in_flight",
			Help: "Number of CRM mutations currently being executed",
		}),
		customersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "crm_customers_created_total",
			Help: "Total number of customers created, including bulk creation",
		}),
		productsRestocked: registerCounter(registerer, prometheus.CounterOpts{
			Name: "crm_products_restocked_total",
			Help: "Total number of products restocked by the low-stock update",
		}),
		outboxEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "crm_outbox_events_enqueued_total",
			Help: "Total number of domain events written to the outbox",
		}, []string{"event_type"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return register(registerer, opts.Name, prometheus.NewCounter(opts))
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return register(registerer, opts.Name, prometheus.NewGauge(opts))
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return register(registerer, opts.Name, prometheus.NewCounterVec(opts, labels))
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return register(registerer, opts.Name, prometheus.NewHistogramVec(opts, labels))
}

// register регистрирует коллектор; при повторной регистрации возвращает уже существующий.
func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// MutationStarted отмечает начало мутации и возвращает функцию завершения,
// которая записывает длительность и результат.
func (m *CRMMetrics) MutationStarted(operation string) func(result string) {
	if m == nil {
		return func(string) {}
	}
	started := time.Now()
	m.inFlight.Inc()
	return func(result string) {
		m.inFlight.Dec()
		m.mutations.WithLabelValues(operation, result).Inc()
		m.mutationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}
}

// RecordCustomersCreated увеличивает счётчик созданных клиентов.
func (m *CRMMetrics) RecordCustomersCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.customersCreated.Add(float64(n))
}

// RecordProductsRestocked увеличивает счётчик пополненных товаров.
func (m *CRMMetrics) RecordProductsRestocked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.productsRestocked.Add(float64(n))
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CRMMetrics) RecordOutboxEvent(eventType string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(eventType).Inc()
}
