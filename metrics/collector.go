// Package metrics keeps in-process counters and histograms and serves them
// as JSON.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leeforge/icons/json"
)

const historyLimit = 100

type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
	now     func() time.Time
}

type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
		now:     time.Now,
	}
}

func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metric(name, "counter", labels)
	m.Value += value
}

func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metric(name, "gauge", labels)
	m.Value = value
}

// ObserveHistogram keeps the last observations; Value holds the latest.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metric(name, "histogram", labels)
	m.Value = value
	m.History = append(m.History, value)
	if len(m.History) > historyLimit {
		m.History = m.History[len(m.History)-historyLimit:]
	}
}

// metric returns the series for (name, labels), creating it. Caller holds mu.
func (c *Collector) metric(name, typ string, labels map[string]string) *Metric {
	key := buildKey(name, labels)
	m, ok := c.metrics[key]
	if !ok {
		m = &Metric{Name: name, Type: typ, Labels: copyLabels(labels)}
		c.metrics[key] = m
	}
	m.Timestamp = c.now().Unix()
	return m
}

// RecordRequest records one served HTTP request.
func (c *Collector) RecordRequest(method, path string, status int, duration float64) {
	labels := map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}

	c.IncCounter("http_requests_total", labels)
	c.ObserveHistogram("http_request_duration_seconds", duration, labels)
}

// buildKey sorts labels so equal label sets always map to the same series.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(":")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	c := make(map[string]string, len(labels))
	for k, v := range labels {
		c[k] = v
	}
	return c
}

// GetMetrics returns a copy of every series keyed by name and labels.
func (c *Collector) GetMetrics() map[string]Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		m := *v
		m.History = append([]float64(nil), v.History...)
		m.Labels = copyLabels(v.Labels)
		result[k] = m
	}
	return result
}

// Value returns the current value of a series, or 0 when it does not exist.
func (c *Collector) Value(name string, labels map[string]string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.metrics[buildKey(name, labels)]; ok {
		return m.Value
	}
	return 0
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// Middleware records every request passing through next.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := c.now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		c.RecordRequest(r.Method, r.URL.Path, ww.statusCode, c.now().Sub(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler serves the collected metrics as a JSON object.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.GetMetrics()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
