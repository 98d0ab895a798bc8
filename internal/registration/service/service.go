package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"teamreg/internal/audit"
	"teamreg/internal/registration/metrics"
	"teamreg/internal/registration/models"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/requestcontext"
)

// Store persists registrations. Create must be atomic and report a taken
// email as sentinel.ErrAlreadyUsed.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	EmailExists(ctx context.Context, email string) (bool, error)
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListAll(ctx context.Context) ([]*models.Registration, error)
	List(ctx context.Context, offset, limit int) ([]*models.Registration, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) (int, error)
}

// StoreTx provides a transactional boundary for store mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

const defaultTxTimeout = 5 * time.Second

// Service orchestrates the registration workflow: validate, commit, report.
type Service struct {
	store          Store
	tx             StoreTx
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the transaction runner. SQL stores pass themselves.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. Without WithTx, mutations run under an
// in-process lock.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registration store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = &lockTx{timeout: defaultTxTimeout}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return s, nil
}

// lockTx serializes mutations for stores without native transactions.
type lockTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func (t *lockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event.Action, "log_type", "audit")
	s.logger.InfoContext(ctx, event.Action, args...)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event", event.Action,
			"error", err,
		)
	}
}

func (s *Service) storageFailure(ctx context.Context, op string, err error) {
	s.logger.ErrorContext(ctx, "registration store failure",
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementStorageFailure(op)
	}
}
