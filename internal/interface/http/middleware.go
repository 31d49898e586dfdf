package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/auth"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyUserID    contextKey = "user_id"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestIDFrom returns the request id stored in ctx.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// UserIDFrom returns the authenticated learner id stored in ctx.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyUserID).(string)
	return id, ok && id != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// GLOBAL MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestID assigns a request id and binds a request-scoped logger to the context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer turns a panic into a 500 envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
				)
				writeError(w, r, http.StatusInternalServerError, CodeInternal, "an unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// observe logs one line per request and records request metrics under the
// matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordAPIRequest(r.Method, route, status, duration)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Latency(duration),
			logger.String("ip", r.RemoteAddr),
		}

		log := logger.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			log.Error("http request", fields...)
		} else {
			log.Info("http request", fields...)
		}
	})
}

// ipRateLimit caps requests per client IP with httprate.
func (s *Server) ipRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.config.RateLimitPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit("ip")
			writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests", nil)
		}),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// API MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// authenticate resolves the bearer token before any handler runs. The user
// id is taken only from the token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok || s.deps.Authenticator == nil {
			writeDomainError(w, r, shared.ErrMissingUser)
			return
		}

		userID, err := s.deps.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			logger.FromContext(r.Context()).Debug("authentication failed", logger.Err(err))
			writeDomainError(w, r, shared.WrapError("http", "Authenticate", shared.ErrUnauthorized, "invalid token", err))
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(logger.UserID(userID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// limitWrites applies the per-learner write limit. Limiter failures let the
// request through.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	if s.deps.WriteLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFrom(r.Context())

		decision, err := s.deps.WriteLimiter.Allow(r.Context(), userID)
		if err != nil {
			logger.FromContext(r.Context()).Warn("write limiter unavailable, allowing request", logger.Err(err))
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RecordRateLimitHit("user_write")
			retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeDomainError(w, r, shared.NewDomainError("http", "UpsertProgress", shared.ErrRateLimited, "too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
