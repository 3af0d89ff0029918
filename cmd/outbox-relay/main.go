package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/battlegrounds/tournaments/internal/guard"
	"github.com/battlegrounds/tournaments/internal/infra"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver == infra.DriverMemory {
		return fmt.Errorf("outbox relay needs a shared store, STORE_DRIVER=memory is process local")
	}

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		// Marking events published without sending them would lose them.
		return fmt.Errorf("KAFKA_ENABLED is false, refusing to drain the outbox")
	}

	// The API owns migrations; the relay only reads and stamps.
	cfg.RunMigrations = false
	opened, err := infra.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer opened.Close()

	clock := clockwork.NewRealClock()
	breaker := guard.NewCircuitBreaker(5, 30*time.Second, clock)
	relay := infra.NewOutboxRelay(repository.NewOutboxRepository(opened.Store), producer, breaker,
		clock, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	relay.Run(ctx)
	return nil
}
