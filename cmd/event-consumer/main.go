package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/dampfi-automation/internal/config"
	"github.com/maltedev/dampfi-automation/internal/events"
	"github.com/maltedev/dampfi-automation/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(slog.LevelInfo, "json").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel(), cfg.Logging.Format)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis", "addr", cfg.Redis.Addr)

	consumer := events.NewConsumer(rdb, events.ConsumerConfig{
		Stream: cfg.Redis.Stream,
		Group:  os.Getenv("CONSUMER_GROUP"),
		Name:   os.Getenv("CONSUMER_NAME"),
	}, log)
	consumer.On(events.EventTypeProductSnapshotUpdated, events.LogStockChanges(log))
	consumer.On(events.EventTypeOrderPlaced, events.LogOrders(log))

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer error", "error", err)
		os.Exit(1)
	}
	log.Info("consumer stopped")
}
