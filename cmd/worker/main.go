package main

import (
	"context"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

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

	log, logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		logrus.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if cfg.UsesMemoryStore() {
		log.Fatal("the report worker needs PostgreSQL; the in-memory store renders reports inside the api process")
	}

	stores, storeCloser, err := core.OpenStores(ctx, cfg, log, false)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer storeCloser.Close()

	redisClient, err := core.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	reportDir := cfg.ReportDir
	if abs, err := filepath.Abs(reportDir); err == nil {
		reportDir = abs
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("failed to ensure report dir %s: %v", reportDir, err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()
	username := "unknown"
	if u, _ := user.Current(); u != nil && u.Username != "" {
		username = u.Username
	}
	wlog := log.WithField("worker", workerID)
	wlog.WithFields(logrus.Fields{
		"concurrency": concurrency,
		"queue":       core.PendingReportsKey,
		"report_dir":  reportDir,
		"user":        username,
	}).Info("worker started")

	state := core.NewHeartbeatState(workerID, hostname, concurrency, wlog)
	go state.Run(ctx, redisClient)

	worker := &core.ReportWorker{
		Queue:           core.NewRedisQueue(redisClient),
		Reports:         stores.Reports,
		Processor:       core.NewReportProcessor(&stores, reportDir),
		State:           state,
		Log:             wlog,
		Concurrency:     concurrency,
		Visibility:      core.DefaultVisibilityTimeout,
		ReclaimInterval: core.ReclaimInterval,
		MaxRetries:      core.MaxReportRetries,
	}
	worker.Run(ctx)
	wlog.Info("worker stopped")
}
