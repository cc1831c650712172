package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New("test")

	m.RecordIntent("joke", "")
	m.RecordIntent("joke", "")
	m.RecordIntent("device_action", "call")
	m.RecordHandled("joke", 20*time.Millisecond)
	m.RecordFailure("openai", "service_unavailable")
	m.RecordTransition("idle", "processing")
	m.SetSessionActive(true)
	m.RecordRejected("image")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntentsTotal.WithLabelValues("joke", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsTotal.WithLabelValues("device_action", "call")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HandlerDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceFailures.WithLabelValues("openai", "service_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("idle", "processing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedInputs.WithLabelValues("image")))

	m.SetSessionActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIntent("joke", "")
		m.RecordHandled("joke", time.Second)
		m.RecordFailure("x", "y")
		m.RecordTransition("a", "b")
		m.SetSessionActive(true)
		m.RecordRejected("image")
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New("jarvis")
	m.RecordIntent("wake_word", "")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `jarvis_intents_total{kind="wake_word",rule=""} 1`))
}
