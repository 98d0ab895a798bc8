package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"teamreg/internal/audit"
	"teamreg/internal/platform/config"
	"teamreg/internal/platform/database"
	"teamreg/internal/platform/tracing"
	"teamreg/internal/registration/metrics"
	"teamreg/internal/registration/service"
	"teamreg/internal/registration/store/memory"
	"teamreg/internal/registration/store/sqlstore"
)

// app holds the wired registration service and everything that must be
// closed when a command finishes.
type app struct {
	service *service.Service
	worker  *audit.Worker
	tracing *tracing.Provider
	closers []func() error
}

type appOptions struct {
	registry    prometheus.Registerer
	traceOutput io.Writer
	asyncAudit  bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{}

	store, tx, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	sink, closeSink, err := openAuditSink(ctx, cfg.Audit, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, closeSink)

	var publisher *audit.Publisher
	if opts.asyncAudit {
		publisher, a.worker = audit.NewAsyncPublisher(sink, cfg.Audit.Buffer)
		a.worker.WithLogger(logger)
	} else {
		publisher = audit.NewPublisher(sink)
	}

	a.tracing, err = tracing.NewProvider(ctx, cfg.Tracing, opts.traceOutput)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	svcOpts := []service.Option{
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithTracer(a.tracing.Tracer()),
	}
	if tx != nil {
		svcOpts = append(svcOpts, service.WithTx(tx))
	}
	if opts.registry != nil {
		svcOpts = append(svcOpts, service.WithMetrics(metrics.New(opts.registry)))
	}
	a.service, err = service.New(store, svcOpts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openStore returns the configured store. tx is nil for the in-memory store,
// which the service then guards with its own lock.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (service.Store, service.StoreTx, func() error, error) {
	noop := func() error { return nil }
	switch {
	case cfg.Driver == database.DriverMemory:
		return memory.New(), nil, noop, nil
	case database.IsPostgres(cfg.Driver):
		db, err := database.OpenPostgres(ctx, cfg.Driver, cfg.DSN, cfg.Options())
		if err != nil {
			return nil, nil, noop, err
		}
		store := sqlstore.NewPostgres(db)
		return store, store, db.Close, nil
	case cfg.Driver == database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		store := sqlstore.NewSQLite(db)
		return store, store, db.Close, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openAuditSink(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) (audit.Sink, func() error, error) {
	if cfg.Sink != config.SinkKafka {
		return audit.NewLogSink(logger), func() error { return nil }, nil
	}
	sink, err := audit.NewKafkaSink(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka audit sink: %w", err)
	}
	if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
		sink.Close()
		return nil, nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	return sink, func() error { sink.Close(); return nil }, nil
}

// openDB opens the SQL database alone, for commands that bypass the service.
func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch {
	case database.IsPostgres(cfg.Driver):
		return database.OpenPostgres(ctx, cfg.Driver, cfg.DSN, cfg.Options())
	case cfg.Driver == database.DriverSQLite:
		return database.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("driver %q has no schema to migrate", cfg.Driver)
	}
}
