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

	"github.com/threadline/threadline-backend/internal/gateway"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: config.ServiceGateway})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: config.ServiceGateway,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	gw, err := gateway.New(cfg.Gateway, logg)
	requireResource(ctx, logg, "gateway", err)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: gw.Handler(),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			logg.Error(ctx, "gateway shutdown failed", err)
		}
	}()

	startCtx := logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(startCtx, "gateway listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "gateway stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "gateway shut down")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
