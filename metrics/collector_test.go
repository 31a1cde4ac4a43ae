package metrics

import (
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersShareSeriesRegardlessOfLabelOrder(t *testing.T) {
	c := NewCollector()
	c.IncCounter("icon_generations_total", map[string]string{"result": "success", "kind": "user"})
	c.AddCounter("icon_generations_total", 2, map[string]string{"kind": "user", "result": "success"})

	assert.Equal(t, 3.0, c.Value("icon_generations_total", map[string]string{"result": "success", "kind": "user"}))
	assert.Len(t, c.GetMetrics(), 1)
	assert.Equal(t, 0.0, c.Value("missing", nil))
}

func TestHistogramKeepsBoundedHistory(t *testing.T) {
	c := NewCollector()
	for i := 0; i < historyLimit+20; i++ {
		c.ObserveHistogram("d", float64(i), nil)
	}
	m := c.GetMetrics()["d"]
	assert.Len(t, m.History, historyLimit)
	assert.Equal(t, float64(historyLimit+19), m.Value)
	assert.Equal(t, 20.0, m.History[0])
}

func TestGetMetricsReturnsCopies(t *testing.T) {
	c := NewCollector()
	c.SetGauge("g", 1, map[string]string{"a": "b"})

	snap := c.GetMetrics()
	m := snap["g:a=b"]
	m.Labels["a"] = "changed"

	assert.Equal(t, "b", c.GetMetrics()["g:a=b"].Labels["a"])
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector()
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/icon", nil))

	labels := map[string]string{"method": "GET", "path": "/icon", "status": "404"}
	assert.Equal(t, 1.0, c.Value("http_requests_total", labels))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/icons/_stats", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out map[string]Metric
	require.NoError(t, stdjson.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out, "http_requests_total:method=GET:path=/icon:status=404")
}
