package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/paper-sharing-service/internal/observability"
)

var httpTestMetrics = observability.NewMetrics("test_httpserver")

func TestCorrelationIDMiddleware_UsesHeader(t *testing.T) {
	var captured string
	h := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = observability.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "corr-123", captured)
	assert.Equal(t, "corr-123", rr.Header().Get("X-Correlation-ID"))
}

func TestCorrelationIDMiddleware_FallsBackToRequestID(t *testing.T) {
	var captured string
	h := middleware.RequestID(correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = observability.CorrelationIDFromContext(r.Context())
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rr.Header().Get("X-Correlation-ID"))
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	h := correlationIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rr.Header().Get("X-Correlation-ID"), 16)
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(requestLogger(zerolog.Nop(), httpTestMetrics))
	r.Get("/papers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/papers/abc", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	}

	counter := httpTestMetrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/papers/{id}", "418")
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestRequestLogger_NilMetrics(t *testing.T) {
	h := requestLogger(zerolog.Nop(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	h := jsonContentTypeMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestUploadCORS_PassesThroughPost(t *testing.T) {
	called := false
	h := uploadCORS("https://papers.example.com")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/upload", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "https://papers.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutePattern_Unmatched(t *testing.T) {
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
