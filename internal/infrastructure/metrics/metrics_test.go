package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPErrors.WithLabelValues("POST", "/api/generate", "500"))

	ObserveHTTPRequest("POST", "/api/generate", 200, 10*time.Millisecond)
	ObserveHTTPRequest("POST", "/api/generate", 500, 10*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPErrors.WithLabelValues("POST", "/api/generate", "500")))
	assert.Zero(t, testutil.ToFloat64(HTTPErrors.WithLabelValues("POST", "/api/generate", "200")))
}

func TestInFlightGauge(t *testing.T) {
	start := testutil.ToFloat64(GenerationsInFlight)
	IncInFlight()
	assert.Equal(t, start+1, testutil.ToFloat64(GenerationsInFlight))
	DecInFlight()
	assert.Equal(t, start, testutil.ToFloat64(GenerationsInFlight))
}

func TestNewServer(t *testing.T) {
	IncError("test", "probe")

	srv := NewServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pluginrelay_errors_total{component="test",type="probe"}`)
}
