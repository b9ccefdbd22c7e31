package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smikhalev/support-rag/internal/bootstrap"
	"github.com/smikhalev/support-rag/internal/config"
	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/observability/metrics"
)

const serviceName = "support-rag-worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Log.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeQueryLog(ctx, func(handlerCtx context.Context, entry domain.QueryLogEntry) error {
		workerMetrics.StartEntry()
		if !entry.CreatedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(entry.CreatedAt))
		}
		start := time.Now()

		insertCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()
		insertErr := app.Store.Insert(insertCtx, entry)
		workerMetrics.FinishEntry(serviceName, time.Since(start), insertErr)
		if insertErr != nil {
			app.Log.Error("query_log_persist_failed", "entry_id", entry.ID, "error", insertErr)
		}
		return insertErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
