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

	"famledger/internal/app"
	"famledger/internal/config"
	"famledger/internal/database"
	"famledger/internal/events"
	"famledger/internal/logger"
	"famledger/internal/services"
	"famledger/internal/validator"
)

// @title           Famledger Budget API
// @version         1.0
// @description     Budget periods, rollover reconciliation and category allocation for personal and family account books.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observers []services.ScopeObserver
	var publisher *events.Client
	if appConfig.AMQPURL != "" {
		publisher, err = events.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange, instanceQueue(appConfig.AMQPQueue))
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	engine := app.New(dbManager.DB(), app.Options{
		SweepConcurrency:   appConfig.SweepConcurrency,
		AggregationTimeout: appConfig.AggregationTimeout,
		CacheSize:          appConfig.CacheSize,
		CacheTTL:           appConfig.CacheTTL,
		MaintenanceAPIKey:  appConfig.MaintenanceAPIKey,
	}, observers...)

	if publisher != nil {
		go func() {
			err := events.ConsumeWithRetry(ctx, appConfig.AMQPURL, appConfig.AMQPExchange,
				instanceQueue(appConfig.AMQPQueue), engine.Invalidator.HandleRemote)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("scope event consumer stopped", "error", err)
			}
		}()
	}

	go engine.Cache.RunJanitor(ctx, appConfig.CacheTTL)

	if appConfig.SweepInterval > 0 {
		go engine.Sweeper.Run(ctx, appConfig.SweepInterval)
		log.Infow("Background sweep enabled", "interval", appConfig.SweepInterval)
	}
	if appConfig.MaintenanceAPIKey == "" {
		log.Warn("MAINTENANCE_API_KEY is not set; maintenance endpoints are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           engine.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Famledger budget server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// instanceQueue gives every API process its own queue so each one sees every
// scope event.
func instanceQueue(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return base
	}
	return base + "." + host
}
