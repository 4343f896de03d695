package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitchenlinehq/kitchenline-backend/api/routes"
	"github.com/kitchenlinehq/kitchenline-backend/internal/anomalies"
	"github.com/kitchenlinehq/kitchenline-backend/internal/notifications"
	"github.com/kitchenlinehq/kitchenline-backend/internal/realtime"
	"github.com/kitchenlinehq/kitchenline-backend/internal/routing"
	"github.com/kitchenlinehq/kitchenline-backend/internal/stations"
	"github.com/kitchenlinehq/kitchenline-backend/internal/tables"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/auth/session"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/metrics"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/migrate"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/pubsub"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	realtimeTransport, err := realtime.NewPubSubTransport(pubsubClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime transport", err)
		os.Exit(1)
	}
	defer realtimeTransport.Close()

	realtimeManager, err := realtime.NewManager(realtimeTransport, sessionManager, cfg.Realtime, metrics.NewRealtimeMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime manager", err)
		os.Exit(1)
	}
	defer realtimeManager.Close()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	routingService, err := routing.NewService(routing.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	tablesService, err := tables.NewService(routingService, cfg.Routing)
	if err != nil {
		logg.Error(context.Background(), "failed to create tables service", err)
		os.Exit(1)
	}

	stationsService, err := stations.NewService(stations.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create stations service", err)
		os.Exit(1)
	}

	anomalyService, err := anomalies.NewService(anomalies.NewRepository(dbClient.DB()), dbClient, outboxService, cfg.Anomaly)
	if err != nil {
		logg.Error(context.Background(), "failed to create anomaly service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			PubSub:        pubsubClient,
			Sessions:      sessionManager,
			Realtime:      realtimeManager,
			Routings:      routingService,
			Tables:        tablesService,
			Stations:      stationsService,
			Anomalies:     anomalyService,
			Notifications: notificationService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
