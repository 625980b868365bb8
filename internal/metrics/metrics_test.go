package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFulfillmentMetrics(t *testing.T) {
	m := NewFulfillmentMetrics(prometheus.NewRegistry(), "shop")

	m.RecordWebhook("approved")
	m.RecordWebhook("approved")
	m.RecordWebhook("duplicate")
	m.RecordDelivery("delivered")
	m.RecordConnectFailure()
	m.ObserveTick(3, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RconConnectFailure))
}

func TestNilFulfillmentMetricsIsNoop(t *testing.T) {
	var m *FulfillmentMetrics
	assert.NotPanics(t, func() {
		m.RecordWebhook("ignored")
		m.RecordDelivery("failed")
		m.RecordConnectFailure()
		m.ObserveTick(0, time.Second)
	})
}

func TestHTTPMetrics(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry(), "shop")
	m.RecordHTTPRequest("POST", "/webhook", "200", 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/webhook", "200")))
}
