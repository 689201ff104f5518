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
	"github.com/threadline/threadline-backend/internal/usersvc"
	"github.com/threadline/threadline-backend/pkg/bus"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: config.ServiceUser})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: config.ServiceUser,
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

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient, config.ServiceUser)
	requireResource(ctx, logg, "migrations", err)

	busClient, err := bus.NewClient(ctx, cfg.Bus, logg)
	requireResource(ctx, logg, "bus", err)
	defer func() {
		if err := busClient.Close(); err != nil {
			logg.Error(ctx, "error closing bus", err)
		}
	}()

	producer := bus.NewProducer(busClient, logg)
	defer producer.Close()

	repo := usersvc.NewRepository(dbClient.DB())
	service := usersvc.NewService(repo, repo, producer, logg, cfg.Password)
	reconciler := usersvc.NewReconciler(repo, logg)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := []*bus.Worker{
		bus.NewWorker(busClient, logg, config.ServiceUser, events.TopicUserRegistered,
			bus.DecodeHandler(config.ServiceUser, events.TopicUserRegistered, logg, reconciler.HandleUserRegistered)),
		bus.NewWorker(busClient, logg, config.ServiceUser, events.TopicUserDataSynced,
			bus.DecodeHandler(config.ServiceUser, events.TopicUserDataSynced, logg, reconciler.HandleUserDataSynced)),
	}

	handler := routes.NewUserRouter(cfg, logg, dbClient, busClient, service)
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
		logg.Info(startCtx, "user service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return server.Shutdown(context.Background())
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "user service stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "user service shut down")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
