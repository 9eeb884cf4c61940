package api

import (
	"log/slog"
	"net/http"
	"time"

	"debt-ledger/internal/api/handler"
	mw "debt-ledger/internal/api/middleware"
	"debt-ledger/internal/config"
	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/domain/debt"

	_ "debt-ledger/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/redis/go-redis/v9"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func SetupRouter(debtService debt.DebtService, clientService client.ClientService, statsService debt.StatsService, redisClient *redis.Client, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, redisClient, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, logger)
	setupClientRoutes(router, cfg, clientService, debtService, logger)
	setupDebtRoutes(router, cfg, debtService, logger)
	setupStatsRoutes(router, cfg, statsService, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, redisClient, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupClientRoutes(router *chi.Mux, cfg *config.Config, svc client.ClientService, debtSvc debt.DebtService, logger *slog.Logger) {
	h := handler.NewClientHandler(svc, debtSvc, logger)

	router.Route("/clients", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateClient)
		r.Get("/", h.ListClients)
		r.Route("/{clientID}", func(r chi.Router) {
			r.Get("/", h.GetClient)
			r.Delete("/", h.DeleteClient)
			r.Put("/status", h.UpdateClientStatus)
			r.Get("/debts", h.ListClientDebts)
		})
	})
}

func setupDebtRoutes(router *chi.Mux, cfg *config.Config, svc debt.DebtService, logger *slog.Logger) {
	h := handler.NewDebtHandler(svc, logger)

	router.Route("/debts", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateDebt)
		r.Get("/overdue", h.ListOverdueDebts)
		r.Route("/{debtID}", func(r chi.Router) {
			r.Get("/", h.GetDebt)
			r.Post("/payments", h.RecordPayment)
			r.Post("/adjustments", h.RecordAdjustment)
			r.Post("/cancel", h.CancelDebt)
			r.Post("/refresh", h.RefreshDebtStatus)
		})
	})
}

func setupStatsRoutes(router *chi.Mux, cfg *config.Config, svc debt.StatsService, logger *slog.Logger) {
	h := handler.NewStatsHandler(svc, logger)

	router.Route("/stats", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/", h.GetStats)
	})
}
