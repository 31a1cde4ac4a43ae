package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDMiddlewareReusesHeader(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/icon", nil)
	r.Header.Set(TraceIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(TraceIDHeader))
}

func TestTraceIDMiddlewareGenerates(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/icon", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(TraceIDHeader))
}
