package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teamreg/internal/platform/config"
	"teamreg/internal/platform/httpserver"
	platformmetrics "teamreg/internal/platform/metrics"
	platformredis "teamreg/internal/platform/redis"
	rlmetrics "teamreg/internal/ratelimit/metrics"
	rlmw "teamreg/internal/ratelimit/middleware"
	"teamreg/internal/ratelimit/models"
	"teamreg/internal/ratelimit/service/requestlimit"
	"teamreg/internal/ratelimit/store/bucket"
	"teamreg/internal/registration/handler"
	"teamreg/pkg/platform/httputil"
	"teamreg/pkg/platform/middleware/admin"
	"teamreg/pkg/platform/middleware/logging"
	"teamreg/pkg/platform/middleware/metadata"
	"teamreg/pkg/platform/middleware/requestid"
	"teamreg/pkg/platform/middleware/requesttime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registration HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, log)
	},
}

// healthCheck reports whether a dependency is reachable.
type healthCheck func(ctx context.Context) error

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Server.HasAdminAuth() {
		return errors.New("server.admin_token or server.admin_token_hash is required to serve")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, logger, appOptions{registry: registry, asyncAudit: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	checks := map[string]healthCheck{}
	limiter, closeLimiter, err := newRateLimiter(ctx, cfg, logger, registry, checks)
	if err != nil {
		return err
	}
	defer closeLimiter()

	resolver, err := metadata.NewResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	router := newRouter(routerDeps{
		service:  a.service,
		clientIP: resolver,
		logger:   logger,
		verify:   admin.VerifierFor(cfg.Server.AdminToken, cfg.Server.AdminTokenHash),
		limiter:  limiter,
		registry: registry,
		checks:   checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)

	logger.Info("starting teamreg",
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Driver,
		"ratelimit", cfg.RateLimit.Backend,
		"audit", cfg.Audit.Sink,
		"trusted_proxies", len(cfg.Server.TrustedProxies),
	)
	err = runLifecycle(ctx, func(ctx context.Context) error {
		return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout)
	}, a.worker)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("teamreg stopped")
	return nil
}

type backgroundWorker interface {
	Run(ctx context.Context) error
}

// runLifecycle serves until ctx ends. The worker is stopped only after serve
// has returned, so events emitted by requests finishing during graceful
// shutdown are still drained.
func runLifecycle(ctx context.Context, serve func(context.Context) error, worker backgroundWorker) error {
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(workerCtx)
	})
	g.Go(func() error {
		defer stopWorker()
		return serve(gctx)
	})
	return g.Wait()
}

// newRateLimiter builds the per-IP limiter. With the redis backend an
// in-memory limiter takes over while Redis is failing.
func newRateLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer, checks map[string]healthCheck) (*rlmw.Middleware, func(), error) {
	limits := map[models.EndpointClass]models.Limit{
		models.ClassSubmit: {Requests: cfg.RateLimit.Submit, Window: cfg.RateLimit.Window},
		models.ClassLookup: {Requests: cfg.RateLimit.Lookup, Window: cfg.RateLimit.Window},
		models.ClassAdmin:  {Requests: cfg.RateLimit.Admin, Window: cfg.RateLimit.Window},
	}
	local, err := requestlimit.New(bucket.NewInMemoryBucketStore(),
		requestlimit.WithLimits(limits),
		requestlimit.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	opts := []rlmw.Option{
		rlmw.WithDisabled(!cfg.RateLimit.Enabled),
		rlmw.WithMetrics(rlmetrics.New(reg)),
	}
	if cfg.RateLimit.Backend != config.BackendRedis || !cfg.RateLimit.Enabled {
		return rlmw.New(local, logger, opts...), func() {}, nil
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, errors.New("ratelimit.backend redis needs redis.url")
	}
	checks["redis"] = client.Health
	shared, err := requestlimit.New(bucket.NewRedisBucketStore(client.Client),
		requestlimit.WithLimits(limits),
		requestlimit.WithLogger(logger),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	opts = append(opts, rlmw.WithFallback(local))
	return rlmw.New(shared, logger, opts...), func() { _ = client.Close() }, nil
}

type routerDeps struct {
	service  handler.Service
	clientIP *metadata.Resolver
	logger   *slog.Logger
	verify   admin.Verifier
	limiter  *rlmw.Middleware
	registry *prometheus.Registry
	checks   map[string]healthCheck
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	if d.clientIP != nil {
		r.Use(d.clientIP.ClientMetadata)
	} else {
		r.Use(metadata.ClientMetadata)
	}
	r.Use(requesttime.Middleware)
	r.Use(logging.Middleware(d.logger))
	if d.registry != nil {
		r.Use(platformmetrics.New(d.registry).LatencyMiddleware)
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", healthHandler(d.checks))

	var opts []handler.Option
	if d.limiter != nil {
		opts = append(opts, handler.WithRateLimits(
			d.limiter.RateLimit(models.ClassSubmit),
			d.limiter.RateLimit(models.ClassLookup),
			d.limiter.RateLimit(models.ClassAdmin),
		))
	}
	h := handler.New(d.service, d.logger, d.verify, opts...)
	h.RegisterPublic(r)
	h.RegisterAdmin(r)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
