package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/pkg/logger"
)

func bareServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s := NewServer(cfg, Dependencies{Logger: logger.New(logger.Options{Output: io.Discard})})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestRateLimitPerClient(t *testing.T) {
	s := bareServer(t, Config{RequestsPerMinute: 2})

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("203.0.113.7").Code)
	assert.Equal(t, http.StatusOK, get("203.0.113.7").Code)

	limited := get("203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"rate_limited"`)

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, get("198.51.100.2").Code)
}

func TestCORS(t *testing.T) {
	s := bareServer(t, Config{AllowedOrigins: []string{"https://app.studypets.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://app.studypets.test")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.studypets.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 192.0.2.3 , 10.0.0.1")
	assert.Equal(t, "192.0.2.3", clientIP(req))
}
