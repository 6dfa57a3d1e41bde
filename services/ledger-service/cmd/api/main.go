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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/floroz/livebid/pkg/auth"
	pkgdb "github.com/floroz/livebid/pkg/database"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/api"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/database"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/notices"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres
	dbURL := os.Getenv("LEDGER_DB_URL")
	if dbURL == "" {
		logger.Error("LEDGER_DB_URL is not set")
		os.Exit(1)
	}
	pool, err := pkgdb.Connect(ctx, dbURL)
	if err != nil {
		logger.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. Redis carries broadcast notices
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Error("REDIS_URL is not set")
		os.Exit(1)
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisURL})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed (notices will fail)", "error", err)
	} else {
		logger.Info("Redis Connected")
	}

	// 3. Token validation
	publicKeyPath := os.Getenv("JWT_PUBLIC_KEY_PATH")
	if publicKeyPath == "" {
		logger.Error("JWT_PUBLIC_KEY_PATH is not set")
		os.Exit(1)
	}
	publicKey, err := os.ReadFile(publicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, getEnvOrDefault("JWT_ISSUER", "livebid"))
	if err != nil {
		logger.Error("Failed to load public key", "error", err)
		os.Exit(1)
	}

	// 4. Wire domain
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	service := ledger.NewService(
		txManager,
		database.NewPostgresCatalogRepository(pool),
		database.NewPostgresBidRepository(pool),
		database.NewPostgresOutboxRepository(pool),
		notices.NewRedisPublisher(rdb),
	)
	handler := api.NewLedgerHandler(service, logger)

	// 5. Serve
	addr := ":" + getEnvOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(api.NewRouter(handler, signer), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down ledger API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting Ledger API", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
