package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aicoe-genesis/genesis-backend/config"
	"github.com/aicoe-genesis/genesis-backend/internal/bootstrap"
	"github.com/aicoe-genesis/genesis-backend/internal/jobs"
)

const serviceName = "genesis-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, bootstrap.AppOptions{
		InMemory: cfg.App.InMemory,
		Migrate:  true,
	})
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer app.Close()

	scheduler := jobs.NewScheduler(app.Registry)
	if err := scheduler.Start(cfg.Realtime.SweepSchedule); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		App:         app,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[info] %s listening on :%s", serviceName, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[info] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[warn] graceful shutdown failed: %v", err)
	}
	scheduler.Stop(shutdownCtx)

	log.Println("[info] stopped")
}
