package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/threadline/threadline-backend/api/routes"
	"github.com/threadline/threadline-backend/internal/authsvc"
	"github.com/threadline/threadline-backend/pkg/bus"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/migrate"
	"github.com/threadline/threadline-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: config.ServiceAuth})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: config.ServiceAuth,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient, config.ServiceAuth)
	requireResource(ctx, logg, "migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	busClient, err := bus.NewClient(ctx, cfg.Bus, logg)
	requireResource(ctx, logg, "bus", err)
	defer func() {
		if err := busClient.Close(); err != nil {
			logg.Error(ctx, "error closing bus", err)
		}
	}()

	producer := bus.NewProducer(busClient, logg)
	defer producer.Close()

	repo := authsvc.NewRepository(dbClient.DB())
	sessions := authsvc.NewRefreshTokenService(repo, cfg.JWT)
	service := authsvc.NewService(repo, sessions, producer, logg, cfg.JWT, cfg.Password)
	reconciler := authsvc.NewReconciler(repo, producer, logg)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := []*bus.Worker{
		bus.NewWorker(busClient, logg, config.ServiceAuth, events.TopicUserProfileCreated,
			bus.DecodeHandler(config.ServiceAuth, events.TopicUserProfileCreated, logg, reconciler.HandleProfileCreated)),
		bus.NewWorker(busClient, logg, config.ServiceAuth, events.TopicUserProfileUpdated,
			bus.DecodeHandler(config.ServiceAuth, events.TopicUserProfileUpdated, logg, reconciler.HandleProfileUpdated)),
		bus.NewWorker(busClient, logg, config.ServiceAuth, events.TopicUserPasswordChanged,
			bus.DecodeHandler(config.ServiceAuth, events.TopicUserPasswordChanged, logg, reconciler.HandlePasswordChanged)),
		bus.NewWorker(busClient, logg, config.ServiceAuth, events.TopicUserSyncRequested,
			bus.DecodeHandler(config.ServiceAuth, events.TopicUserSyncRequested, logg, reconciler.HandleSyncRequested)),
	}

	handler := routes.NewAuthRouter(cfg, logg, dbClient, redisClient, busClient, service)
	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: handler,
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	for _, worker := range workers {
		worker := worker
		group.Go(func() error {
			worker.Run(groupCtx)
			return nil
		})
	}
	group.Go(func() error {
		startCtx := logg.WithFields(groupCtx, map[string]any{
			"env":  cfg.App.Env,
			"addr": server.Addr,
		})
		logg.Info(startCtx, "auth service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx := context.Background()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "auth service stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "auth service shut down")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
