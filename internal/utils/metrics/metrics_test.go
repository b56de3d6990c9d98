package metrics

import (
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New("test", prometheus.NewRegistry())
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)
	require.NotNil(t, m)

	m.RecordTokenRefresh("success")
	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "album_auth_token_refresh_total")
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/images", 200, 100*time.Millisecond)
	m.RecordHTTPRequest("POST", "/images/upload", 415, 5*time.Millisecond)
	m.RecordHTTPRequest("DELETE", "/images/delete", 500, 5*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/images", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/images/upload", "4xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("DELETE", "/images/delete", "5xx")))
}

func TestMetrics_RecordStorageOperation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordStorageOperation("list", "success", 20*time.Millisecond)
	m.RecordStorageOperation("list", "success", 30*time.Millisecond)
	m.RecordStorageOperation("put", "service_error", 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("list", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("put", "service_error")))
}

func TestMetrics_AuthCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTokenRefresh("rejected")
	m.RecordCredentialExchange("success")
	m.RecordAuthEvent("logout")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CredentialExchangeTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("logout")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RecordStorageOperation("get", "success", time.Millisecond)
		m.RecordTokenRefresh("success")
		m.RecordCredentialExchange("success")
		m.RecordAuthEvent("login_success")
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{400, "4xx"},
		{413, "4xx"},
		{503, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusCodeToString(tt.code))
		})
	}
}
