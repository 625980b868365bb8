package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// FulfillmentMetrics tracks webhook ingestion and delivery
type FulfillmentMetrics struct {
	WebhookEvents      *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	RconConnectFailure prometheus.Counter
	TickDuration       prometheus.Histogram
	ClaimedOrders      prometheus.Histogram
}

// NewHTTPMetrics creates HTTP metrics for a service
func NewHTTPMetrics(reg prometheus.Registerer, serviceName string) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewFulfillmentMetrics creates business metrics for the order pipeline
func NewFulfillmentMetrics(reg prometheus.Registerer, serviceName string) *FulfillmentMetrics {
	f := promauto.With(reg)
	return &FulfillmentMetrics{
		WebhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_webhook_events_total",
				Help: "Payment notifications by ingestion result",
			},
			[]string{"result"},
		),
		Deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_deliveries_total",
				Help: "Delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		RconConnectFailure: f.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_rcon_connect_failures_total",
				Help: "Worker ticks that could not open an RCON session",
			},
		),
		TickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    serviceName + "_delivery_tick_duration_seconds",
				Help:    "Delivery worker tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ClaimedOrders: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    serviceName + "_delivery_claimed_orders",
				Help:    "Orders claimed per delivery tick",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *FulfillmentMetrics) RecordWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(result).Inc()
}

func (m *FulfillmentMetrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome).Inc()
}

func (m *FulfillmentMetrics) RecordConnectFailure() {
	if m == nil {
		return
	}
	m.RconConnectFailure.Inc()
}

func (m *FulfillmentMetrics) ObserveTick(claimed int, d time.Duration) {
	if m == nil {
		return
	}
	m.ClaimedOrders.Observe(float64(claimed))
	m.TickDuration.Observe(d.Seconds())
}
