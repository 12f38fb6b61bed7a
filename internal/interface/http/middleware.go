package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/studypets/studypets-core/internal/interface/http/handlers"
	"github.com/studypets/studypets-core/pkg/logger"
)

// middleware lists the chain outermost first. Recovery wraps everything so a
// panicking middleware still gets a JSON 500.
func (s *Server) middleware() []handlers.MiddlewareFunc {
	chain := []handlers.MiddlewareFunc{
		s.recoverPanics,
		s.tagRequest,
		s.logRequests,
		handlers.SecurityHeadersMiddleware,
		handlers.NoCacheMiddleware,
	}
	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, s.cors)
	}
	if s.limiter != nil {
		chain = append(chain, s.limitRate)
	}
	return append(chain,
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
		s.authenticate,
	)
}

type requestIDKey struct{}

// tagRequest honours a sane X-Request-ID from the client and otherwise mints
// one. The ID is echoed back and bound to the request logger.
func (s *Server) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx, s.logger.With(logger.RequestIDKey, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.FromContext(r.Context()).Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", clientIP(r),
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("panic recovered", "error", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
			writeJSONError(w, r, http.StatusInternalServerError, errInternalBody)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]bool, len(s.config.AllowedOrigins))
	for _, o := range s.config.AllowedOrigins {
		allowAny = allowAny || o == "*"
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && (allowAny || allowed[origin]) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitRate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, r, http.StatusTooManyRequests, &APIError{
				Code:    "rate_limited",
				Message: "too many requests, please try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate attaches the caller. A request without credentials continues
// anonymously and is refused by every operation except health.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := s.deps.Auth.Authenticate(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := handlers.WithActor(r.Context(), actor)
		if !actor.IsZero() {
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("actor", actor.UserID, "role", actor.Role))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the first proxy-reported address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-client rate limiting
// ─────────────────────────────────────────────────────────────────────────────

// clientLimiter keeps one token bucket per client. A full bucket holds a
// minute's budget; buckets idle for ten minutes are dropped.
type clientLimiter struct {
	perMinute int

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newClientLimiter(perMinute int) *clientLimiter {
	l := &clientLimiter{perMinute: perMinute, buckets: make(map[string]*bucket), done: make(chan struct{})}
	go l.sweep()
	return l
}

func (l *clientLimiter) allow(client string) bool {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.buckets[client] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

func (l *clientLimiter) sweep() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-t.C:
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.lastSeen) > bucketIdleTTL {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *clientLimiter) stop() { l.stopOnce.Do(func() { close(l.done) }) }
