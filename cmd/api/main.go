package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/lauracd1s/Proyecto-licore/internal/checkout"
	"github.com/lauracd1s/Proyecto-licore/internal/config"
	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/events"
	"github.com/lauracd1s/Proyecto-licore/internal/logger"
	"github.com/lauracd1s/Proyecto-licore/internal/markdown"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/lauracd1s/Proyecto-licore/internal/store"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Environment)

	policy, err := pricing.LoadPolicy(cfg.Pricing.PolicyFile)
	if err != nil {
		return fmt.Errorf("load pricing policy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	repo := store.NewRepository(db, policy.LoyaltyLevels)

	var markdowns markdown.Store = markdown.NewMemoryStore()
	if cfg.Redis.URL != "" {
		client, err := markdown.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		markdowns = markdown.NewRedisStore(client, cfg.Redis.MarkdownTTL).WithKey(cfg.Redis.MarkdownKey)
		log.Info().Str("key", cfg.Redis.MarkdownKey).Msg("markdown snapshots stored in redis")
	}

	sweeperLog := logger.Component("markdown")
	sweeper, err := markdown.NewSweeper(markdown.SweeperDeps{
		Catalog:  repo,
		Store:    markdowns,
		Policy:   &policy,
		Interval: cfg.Pricing.SweepInterval,
		Logger:   &sweeperLog,
	})
	if err != nil {
		return err
	}

	engineLog := logger.Component("pricing")
	engine, err := pricing.NewEngine(pricing.EngineDeps{
		Catalog:   repo,
		Offers:    repo,
		Customers: repo,
		Markdowns: sweeper,
		Policy:    &policy,
		Logger:    &engineLog,
	})
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka), logger.Component("events"))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing sale events")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close event publisher")
		}
	}()

	checkoutLog := logger.Component("checkout")
	carts, err := checkout.NewService(checkout.ServiceDeps{
		Engine:    engine,
		Sales:     repo,
		Publisher: publisher,
		Logger:    &checkoutLog,
	})
	if err != nil {
		return err
	}
	defer carts.Wait()

	go sweeper.Run(ctx)

	api := &server{
		db:      db,
		carts:   carts,
		sweeper: sweeper,
		log:     logger.Component("http"),
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
		close(idleConnsClosed)
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	<-idleConnsClosed
	log.Info().Msg("server stopped")
	return nil
}
