package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"teamreg/internal/ratelimit/metrics"
	"teamreg/internal/ratelimit/models"
	"teamreg/pkg/platform/httputil"
	"teamreg/pkg/requestcontext"
)

// HeaderStatus is set to "degraded" while the in-memory fallback is serving.
const HeaderStatus = "X-RateLimit-Status"

type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	fallback RateLimiter
	breaker  *CircuitBreaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the limiter used while the primary store is failing.
func WithFallback(fallback RateLimiter) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		breaker: newCircuitBreaker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP for the given class. Limiter
// failures fail open unless a fallback limiter is configured.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded := m.check(ctx, ip, class)
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}
			if m.metrics != nil {
				m.metrics.RecordDecision(string(class), result.Allowed)
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check returns a nil result when no limiter could answer.
func (m *Middleware) check(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, bool) {
	if !m.breaker.IsOpen() {
		result, err := m.limiter.CheckIP(ctx, ip, class)
		if err == nil {
			m.breaker.RecordSuccess()
			return result, false
		}
		m.logger.ErrorContext(ctx, "failed to check IP rate limit",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if m.metrics != nil {
			m.metrics.IncrementErrors()
		}
		if m.breaker.RecordFailure() && m.metrics != nil {
			m.metrics.SetDegraded(true)
		}
	} else {
		// Probe the primary; the breaker closes after enough successes.
		if _, err := m.limiter.CheckIP(ctx, ip, class); err == nil {
			if m.breaker.RecordSuccess() && m.metrics != nil {
				m.metrics.SetDegraded(false)
			}
		} else {
			m.breaker.RecordFailure()
		}
	}

	if m.fallback == nil {
		return nil, m.breaker.IsOpen()
	}
	result, err := m.fallback.CheckIP(ctx, ip, class)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback rate limiter failed", "error", err)
		return nil, true
	}
	return result, true
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
