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

	"github.com/sirupsen/logrus"

	"liana-crm/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		logrus.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if cfg.Production() && cfg.AuthSecret == core.DefaultAuthSecret {
		log.Warn("AUTH_SECRET is not set; tokens are signed with the default secret")
	}

	stores, storeCloser, err := core.OpenStores(ctx, cfg, log, cfg.SeedUsers)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer storeCloser.Close()

	redisClient, err := core.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	app := core.NewApp(cfg, log, stores, redisClient)

	// The in-memory store is private to this process, so it renders its own reports.
	if cfg.UsesMemoryStore() {
		hostname, _ := os.Hostname()
		workerID := core.NewWorkerID()
		state := core.NewHeartbeatState(workerID, hostname, 1, log)
		go state.Run(ctx, redisClient)
		worker := &core.ReportWorker{
			Queue:       app.Queue,
			Reports:     stores.Reports,
			Processor:   core.NewReportProcessor(&stores, cfg.ReportDir),
			State:       state,
			Log:         log.WithField("worker", workerID),
			Concurrency: 1,
		}
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           core.NewRouter(app, core.NewCookieStore(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.Infof("starting api server on %s (env=%s)", srv.Addr, cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
