package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"notification-engine/internal/api"
	"notification-engine/internal/config"
	"notification-engine/internal/directory"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/eligibility"
	"notification-engine/internal/kafka"
	"notification-engine/internal/logging"
	"notification-engine/internal/models"
	"notification-engine/internal/providers"
	"notification-engine/internal/storage"
	"notification-engine/internal/storage/postgres"
	"notification-engine/internal/storage/redisstore"
	"notification-engine/internal/template"
	"notification-engine/internal/threshold"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := postgres.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	notifications := postgres.NewNotificationStore(db)
	preferences := postgres.NewPreferenceStore(db)

	// Threshold claims live in redis when configured, postgres otherwise.
	var claims storage.ThresholdClaimStore = postgres.NewThresholdClaimStore(db)
	if cfg.Redis.URL != "" {
		rs, err := redisstore.New(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rs.Close()
		claims = rs
	}

	// Channel adapters
	hub := providers.NewHub(logger)
	senders := map[models.Channel]dispatch.Sender{
		models.ChannelEmail: providers.NewEmailSender(cfg, logger),
		models.ChannelSMS:   providers.NewSMSSender(cfg, logger),
		models.ChannelPush:  providers.NewPushSender(cfg, logger),
		models.ChannelInApp: providers.NewInAppSender(hub),
	}

	tracker := threshold.NewTracker(claims, cfg.Usage.Thresholds, cfg.Usage.Cooldown, logger)
	dispatcher := dispatch.New(
		notifications,
		preferences,
		directory.NewClient(cfg.Directory.BaseURL),
		template.NewRegistry(template.Defaults()...),
		eligibility.New(),
		tracker,
		senders,
		logger,
		dispatch.Options{
			QueueSize:       cfg.Dispatch.QueueSize,
			Workers:         cfg.Dispatch.MaxWorkers,
			FanOut:          cfg.Dispatch.FanOut,
			DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		},
	)

	var wg sync.WaitGroup
	dispatcher.Start(&wg)

	// Start Kafka consumer
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, dispatcher, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Start(ctx)
	}()

	// Start API server
	handler := api.NewHandler(dispatcher, preferences, hub, logger)
	router := api.NewRouter(handler, logger, cfg.API.BasePath)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Info("Shutting down...")
	cancel()
	dispatcher.Stop()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Consumer close failed: %v", err)
	}
	wg.Wait()
	logger.Info("Service stopped")
}
