package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgdb "github.com/floroz/livebid/pkg/database"
	pkgevents "github.com/floroz/livebid/pkg/events"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/database"
)

// The worker relays committed bid events from the outbox table to RabbitMQ.
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

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

	// 2. RabbitMQ
	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}
	amqpConn, err := amqp.Dial(rabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 3. Relay
	var relayOpts []pkgevents.RelayOption
	if v := os.Getenv("OUTBOX_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Error("Invalid OUTBOX_MAX_ATTEMPTS", "value", v, "error", err)
			os.Exit(1)
		}
		relayOpts = append(relayOpts, pkgevents.WithMaxAttempts(n))
	}
	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(pool),
		publisher,
		pkgdb.NewPostgresTransactionManager(pool, 3*time.Second),
		logger,
		relayOpts...,
	)

	logger.Info("Starting Outbox Relay...")
	if err := relay.Run(ctx); err != nil {
		logger.Error("Outbox Relay stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
