package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/dampfi-automation/internal/api"
	"github.com/maltedev/dampfi-automation/internal/browser"
	"github.com/maltedev/dampfi-automation/internal/catalog"
	"github.com/maltedev/dampfi-automation/internal/checkout"
	"github.com/maltedev/dampfi-automation/internal/config"
	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/events"
	"github.com/maltedev/dampfi-automation/internal/jobs"
	"github.com/maltedev/dampfi-automation/internal/lock"
	"github.com/maltedev/dampfi-automation/internal/ratelimit"
	"github.com/maltedev/dampfi-automation/internal/scraper"
	"github.com/maltedev/dampfi-automation/internal/validate"
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

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.InitSchema(ctx, db.SQL()); err != nil {
		log.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	if err := database.SeedUsers(ctx, db.SQL(), cfg.Checkout.MaxUserID); err != nil {
		log.Error("failed to seed users", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	outbox := database.NewOutboxRepository(db.SQL())
	relay := database.NewRelay(outbox, redisClient, log, database.RelayConfig{
		PollInterval: cfg.Jobs.OutboxPollInterval,
		BatchSize:    cfg.Jobs.OutboxBatchSize,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	launcher, err := browser.NewLauncher(cfg.BrowserOptions(), log)
	if err != nil {
		log.Error("failed to initialize browser launcher", "error", err)
		os.Exit(1)
	}

	library := cfg.Library()
	validator := validate.New(cfg.SiteHost(), cfg.Checkout.MaxUserID)
	store := catalog.NewPostgresStore(db.SQL(), events.NewPublisher(outbox, cfg.Redis.Stream, log))

	products := catalog.NewProductService(
		store,
		scraper.NewExtractor(library, cfg.ScraperOptions(), log),
		ratelimit.NewAdaptiveLimiter(cfg.Scraper.RetryDelayMin, cfg.Scraper.RetryDelayMax),
		validator,
		cfg.Scraper.MaxAttempts,
		log,
	)
	checkouts := catalog.NewCheckoutService(
		store,
		checkout.NewOrchestrator(launcher, library, cfg.CheckoutConfig(), log),
		lock.NewCheckoutLock(redisClient, cfg.Checkout.LockTTL),
		validator,
		log,
	)

	refresher := jobs.NewRefresher(products, cfg.Jobs.RefreshInterval, log)
	go refresher.Start(ctx)

	handlers := api.NewHandlers(products, checkouts, validator, log).WithHealthSources(relay, refresher)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, api.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		cancel()
	}()

	log.Info("server starting", "addr", server.Addr, "site", cfg.Site.BaseURL, "browser", cfg.Browser.Engine)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
