package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	jwttoken "flightsurety/internal/jwt_token"
	"flightsurety/internal/operations/handler"
	opsmetrics "flightsurety/internal/operations/metrics"
	"flightsurety/internal/operations/service"
	"flightsurety/internal/platform/config"
	"flightsurety/internal/platform/httpserver"
	"flightsurety/internal/platform/logger"
	"flightsurety/internal/platform/metrics"
	"flightsurety/internal/platform/middleware"
	platformredis "flightsurety/internal/platform/redis"
	"flightsurety/pkg/domain"
	"flightsurety/pkg/platform/httputil"
	authmw "flightsurety/pkg/platform/middleware/auth"
	"flightsurety/pkg/platform/middleware/requesttime"
)

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set FLIGHTSURETY_AUTH_SIGNING_KEY")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	opsMetrics := opsmetrics.New(reg)

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	publisher, closeJournal, err := openJournal(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeJournal(); err != nil {
			log.Error("failed to close journal", "error", err)
		}
	}()

	svcCfg, err := serviceConfig(cfg.Ledger)
	if err != nil {
		return err
	}
	svc, err := service.New(svcCfg,
		service.WithLogger(log),
		service.WithMetrics(opsMetrics),
		service.WithJournal(publisher),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	var revocations authmw.TokenRevocationChecker
	if redisClient != nil {
		revocations = jwttoken.NewRedisRevocationList(redisClient)
	} else {
		revocations = jwttoken.NewMemoryRevocationList()
	}

	router := newRouter(routerDeps{
		logger:      log,
		service:     svc,
		validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		revocations: revocations,
		metrics:     httpMetrics,
		registry:    reg,
		cfg:         cfg.Server,
		health:      healthCheck(redisClient),
	})

	log.Info("starting flightsurety",
		"addr", cfg.Server.Addr,
		"owner", svcCfg.Owner.String(),
		"oracles", len(svcCfg.Oracles),
	)
	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout, log)
}

func serviceConfig(l config.Ledger) (service.Config, error) {
	owner, err := l.OwnerPrincipal()
	if err != nil {
		return service.Config{}, err
	}
	oracles, err := l.OraclePrincipals()
	if err != nil {
		return service.Config{}, err
	}
	return service.Config{
		Owner:            owner,
		OwnerName:        l.OwnerName,
		Oracles:          oracles,
		FundingThreshold: domain.Amount(l.FundingThreshold),
		MaxPremium:       domain.Amount(l.MaxPremium),
		BootstrapSize:    l.BootstrapSize,
		TxTimeout:        l.TxTimeout,
	}, nil
}

type routerDeps struct {
	logger      *slog.Logger
	service     handler.Service
	validator   authmw.JWTValidator
	revocations authmw.TokenRevocationChecker
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	cfg         config.Server
	health      func(context.Context) error
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.logger))
	if d.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.cfg.RequestTimeout))
	}
	r.Use(middleware.LatencyMiddleware(d.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.health != nil {
			if err := d.health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		handler.New(d.service, d.logger, d.validator, d.revocations).Register(r)
	})
	return r
}

func healthCheck(client *platformredis.Client) func(context.Context) error {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}
