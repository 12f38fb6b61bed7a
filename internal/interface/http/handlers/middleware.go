package handlers

import (
	"net/http"
)

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain composes middleware; the first one listed runs outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// withHeaders sets a fixed header set before calling next.
func withHeaders(headers [][2]string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	apiSecurityHeaders = withHeaders([][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	})

	// Wallets, streaks and boards are per student and change on every
	// practice session.
	noStoreHeaders = withHeaders([][2]string{
		{"Cache-Control", "no-store, no-cache, must-revalidate, max-age=0"},
		{"Pragma", "no-cache"},
	})
)

// SecurityHeadersMiddleware sets the headers a JSON-only API needs.
func SecurityHeadersMiddleware(next http.Handler) http.Handler { return apiSecurityHeaders(next) }

// NoCacheMiddleware keeps proxies and browsers from storing responses.
func NoCacheMiddleware(next http.Handler) http.Handler { return noStoreHeaders(next) }

// RequestSizeLimitMiddleware caps request bodies at maxBytes. The decoder
// reports an oversized body as invalid input.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
