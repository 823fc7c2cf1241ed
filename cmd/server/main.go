package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kilimokredo/internal/identity"
	"kilimokredo/internal/loan/handler"
	"kilimokredo/internal/loan/metrics"
	"kilimokredo/internal/loan/scoring"
	"kilimokredo/internal/loan/service"
	"kilimokredo/internal/platform/config"
	"kilimokredo/internal/platform/httpserver"
	"kilimokredo/internal/platform/logger"
	"kilimokredo/internal/platform/middleware"
	"kilimokredo/internal/platform/redis"
	"kilimokredo/internal/ratelimit"
	"kilimokredo/pkg/platform/httputil"
)

const shutdownTimeout = 15 * time.Second

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if !cfg.Scoring.Configured() {
		log.Warn("scoring endpoint not configured; submissions and simulations will fail")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	scorer := scoring.New(&cfg.Scoring, scoring.WithLogger(log), scoring.WithMetrics(m))
	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	svc := service.New(service.NewRepository(st, opts...), scorer, opts...)

	resolver, err := newResolver(cfg.Auth, log)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client)
	} else {
		mem := ratelimit.NewMemoryLimiter()
		defer mem.Close()
		limiter = mem
	}
	limit := ratelimit.NewMiddleware(limiter, cfg.RateLimit.PerMinute, log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)

	loans := handler.New(svc, log,
		handler.WithPlaceholderIdentity(cfg.Auth.Mode == config.AuthPlaceholder),
		handler.WithScoringMiddleware(limit.Handler("scoring")),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestMetadata)
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Get("/healthz", healthz(redisClient))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(resolver, log))
		loans.Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r, cfg.Scoring.Timeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting kilimokredo", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "auth_mode", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newResolver(cfg config.Auth, log *slog.Logger) (identity.Resolver, error) {
	switch cfg.Mode {
	case config.AuthJWT:
		return identity.NewJWTResolver(cfg.JWTSigningKey), nil
	case config.AuthHeader:
		log.Warn("AUTH_MODE=header trusts the X-Farmer-ID header; development only")
		return identity.HeaderResolver{}, nil
	case config.AuthPlaceholder:
		log.Warn("AUTH_MODE=placeholder accepts farmerId from the request body; development only")
		return identity.Anonymous{}, nil
	default:
		return nil, errors.New("unknown auth mode " + cfg.Mode)
	}
}

func healthz(rc *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rc != nil {
			if err := rc.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
