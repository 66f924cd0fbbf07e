package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/clock"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/queue"
	"storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/signer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close queue, database and redis clients
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// buildSigner selects the storage backend that signs catalog and image URLs
func buildSigner(ctx context.Context, cfg *config.Config) (signer.Signer, error) {
	switch cfg.Storage.Backend {
	case "s3":
		awsCfg, err := signer.LoadAWSConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return signer.NewS3SignerFromConfig(awsCfg, cfg.AWS.EndpointURL), nil
	default:
		if cfg.Azure.ConnectionString != "" {
			return signer.NewAzureSignerFromConnectionString(cfg.Azure.ConnectionString), nil
		}
		return signer.NewAzureSigner(signer.AzureConfig{
			AccountName:  cfg.Azure.AccountName,
			AccountKey:   cfg.Azure.AccountKey,
			BlobEndpoint: cfg.Azure.BlobEndpoint,
		}), nil
	}
}

// buildRedis returns a client when the queue needs one or a Redis server answers for rate limiting
func buildRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Queue.Backend == queue.BackendRedis {
		return client
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Info("Redis unavailable, using in-process rate limiting", zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

// buildPublisher selects the work queue; the Postgres queue also returns its database
func buildPublisher(cfg *config.Config, redisClient *redis.Client, log *zap.Logger) (queue.Publisher, database.Service, error) {
	switch cfg.Queue.Backend {
	case queue.BackendRedis:
		return queue.NewRedisPublisher(redisClient, cfg.Queue.Name, cfg.Queue.Timeout), nil, nil

	case queue.BackendPostgres:
		dbService, err := database.New(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			Schema:   cfg.Database.Schema,
		})
		if err != nil {
			return nil, nil, err
		}

		health := dbService.Health(context.Background())
		log.Info("Database health check", zap.Any("health", health))

		if err := database.RunMigrations(dbService.DB(), "migrations", log); err != nil {
			dbService.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("Database migrations completed successfully")

		repo := repository.NewOrderQueueRepository(dbService.DB())
		return queue.NewPostgresPublisher(repo, cfg.Queue.Timeout, dbService.Close), dbService, nil

	default:
		publisher, err := queue.NewAzurePublisher(queue.AzureConfig{
			ConnectionString: cfg.Azure.ConnectionString,
			QueueName:        cfg.Queue.Name,
			Base64:           cfg.Queue.Base64Encode,
			Timeout:          cfg.Queue.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return publisher, nil, nil
	}
}

func main() {
	// Initialize a bootstrap logger until configuration is known
	bootLog := logger.NewWithDefaults()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("queue", cfg.Queue.Backend),
	)

	ctx := context.Background()

	storageSigner, err := buildSigner(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage signer", zap.Error(err))
	}

	redisClient := buildRedis(ctx, cfg, log)

	publisher, dbService, err := buildPublisher(cfg, redisClient, log)
	if err != nil {
		log.Fatal("Failed to initialize order queue", zap.Error(err))
	}

	deps := server.Dependencies{
		Signer:    storageSigner,
		Publisher: publisher,
		Clock:     clock.System(),
		Metrics:   metrics.New(),
		Redis:     redisClient,
	}
	if dbService != nil {
		deps.Database = dbService
	}

	// Create server
	srv := server.NewServer(cfg, log, deps)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
