package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"teamreg/internal/ratelimit/models"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/requestcontext"
)

// BucketStore manages sliding window rate limit counters.
type BucketStore interface {
	// Allow checks if a single request is allowed and records it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error
}

type Service struct {
	buckets BucketStore
	limits  map[models.EndpointClass]models.Limit
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLimits replaces the per-class limits. Classes left out are denied.
func WithLimits(limits map[models.EndpointClass]models.Limit) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}

	svc := &Service{
		buckets: buckets,
		limits:  models.DefaultLimits(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIP consumes one request from the client IP's bucket for class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.limits[class]
	if !ok || limit.Requests <= 0 {
		// Default-deny: no limit configured for this class
		s.logger.WarnContext(ctx, "rate limit config missing",
			"endpoint_class", class,
			"log_type", "audit",
		)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    requestcontext.Now(ctx),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewRateLimitKey(models.KeyPrefixIP, ip, class)
	result, err := s.buckets.Allow(ctx, key.String(), limit.Requests, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if !result.Allowed {
		s.logger.InfoContext(ctx, "ip_rate_limit_exceeded",
			"endpoint_class", class,
			"limit", limit.Requests,
			"window_seconds", int(limit.Window.Seconds()),
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	return result, nil
}

// ResetIP clears the client IP's bucket for class.
func (s *Service) ResetIP(ctx context.Context, ip string, class models.EndpointClass) error {
	key := models.NewRateLimitKey(models.KeyPrefixIP, ip, class)
	if err := s.buckets.Reset(ctx, key.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	return nil
}
