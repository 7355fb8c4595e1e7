package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()

	m.SetConnections(3)
	m.MessageReceived("ping")
	m.MessageReceived("ping")
	m.Tick("symbol")
	m.DeliveryFailed()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("symbol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetConnections(1)
		m.MessageSent()
		m.QuoteFailed()
		m.ObserveQuoteLatency(0.1)
	})
}

func TestHandlerExposesStreamMetrics(t *testing.T) {
	m := NewMetrics()
	m.MessageSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stream_messages_sent_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
