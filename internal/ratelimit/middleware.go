package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/platform/httputil"
	"kilimokredo/pkg/requestcontext"
)

// Middleware applies one Limiter to the routes it wraps.
type Middleware struct {
	limiter  Limiter
	limit    int
	window   time.Duration
	logger   *slog.Logger
	disabled bool
	now      func() time.Time
}

type Option func(*Middleware)

// WithDisabled turns limiting off entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithWindow overrides the one-minute window.
func WithWindow(window time.Duration) Option {
	return func(m *Middleware) {
		m.window = window
	}
}

// NewMiddleware allows limit requests per client IP per window.
func NewMiddleware(limiter Limiter, limit int, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		limit:   limit,
		window:  time.Minute,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Handler wraps next. The scope separates counters of differently limited
// route groups.
func (m *Middleware) Handler(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			res, err := m.limiter.Allow(ctx, scope+":"+ip, m.limit, m.window)
			if err != nil {
				// Fail open.
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := res.RetryAfter(m.now())
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
				)
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeRateLimited, "too many requests, retry in %d seconds", retry))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
