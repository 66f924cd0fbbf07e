package server

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"storefront/internal/clock"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/fetcher"
	"storefront/internal/metrics"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/queue"
	"storefront/internal/service"
	"storefront/internal/signer"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the clients built from configuration, owned by the server once passed in
type Dependencies struct {
	Signer    signer.Signer
	Publisher queue.Publisher
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	// Redis backs the shared rate limiter; nil falls back to an in-process limiter
	Redis *redis.Client
	// Database is reported on /health when the Postgres queue is in use
	Database database.Service
}

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	publisher queue.Publisher
	redis     *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	// Create router
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	if cfg.IsProduction() && allowsAnyOrigin(cfg.Server.CORSOrigins) {
		logger.Warn("CORS allows any origin in production; set CORS_ALLOWED_ORIGINS to the storefront hosts")
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins))
	router.Use(custommiddleware.MetricsMiddleware(deps.Metrics))
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))

	router.Get("/health", healthHandler(deps.Database))
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// Initialize pipeline components
	issuer := signer.NewIssuer(deps.Signer, deps.Clock, logger, deps.Metrics)
	docFetcher := fetcher.New(fetcher.Config{
		Timeout:  cfg.Fetch.Timeout,
		MaxBytes: cfg.Fetch.MaxBytes,
	}, logger)

	// Initialize services
	catalogService := service.NewCatalogService(issuer, docFetcher, service.CatalogConfig{
		ProductsContainer: cfg.Storage.ProductsContainer,
		ImagesContainer:   cfg.Storage.ImagesContainer,
		CatalogObject:     cfg.Storage.CatalogObject,
		CatalogURL:        cfg.Fetch.CatalogURL,
		DocumentTTL:       cfg.Storage.DocumentTTL,
		ImageTTL:          cfg.Storage.ImageTTL,
	}, logger, deps.Metrics)
	orderService := service.NewOrderService(catalogService, deps.Publisher, deps.Clock, logger, deps.Metrics)

	// Initialize handlers
	storefrontHandler := transport.NewStorefrontHandler(catalogService, orderService, logger)

	// Register routes
	var buyMiddleware []func(http.Handler) http.Handler
	if limiter := rateLimiter(cfg, deps.Redis, logger); limiter != nil {
		buyMiddleware = append(buyMiddleware, limiter)
	}
	storefrontHandler.RegisterRoutes(router, buyMiddleware...)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		publisher: deps.Publisher,
		redis:     deps.Redis,
	}

	return server
}

// rateLimiter picks the Redis limiter when a client is available; zero requests disables limiting
func rateLimiter(cfg *config.Config, client *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg.RateLimit.Requests <= 0 {
		return nil
	}

	rlConfig := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "storefront:ratelimit:buy",
	}
	if client != nil {
		return custommiddleware.RateLimitMiddleware(client, rlConfig, logger)
	}
	return custommiddleware.LocalRateLimitMiddleware(rlConfig, logger)
}

func allowsAnyOrigin(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		status := http.StatusOK

		if db != nil {
			dbHealth := db.Health(r.Context())
			body["database"] = dbHealth
			if dbHealth["status"] != "up" {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		custommiddleware.RespondWithJSON(w, status, body)
	}
}

// Close releases the queue and Redis clients; call it after Shutdown
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	var firstErr error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close queue publisher",
				zap.String("backend", s.publisher.Backend()),
				zap.Error(err),
			)
			firstErr = err
		}
	}

	// The Redis publisher already closed the shared client.
	if s.redis != nil && (s.publisher == nil || s.publisher.Backend() != queue.BackendRedis) {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.logger.Sync()
	return firstErr
}
