package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docpipe/docpipe/internal/bootstrap"
	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/observability/logging"
	"github.com/docpipe/docpipe/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("docpipe-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("docpipe-worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	errc := make(chan error, 2)
	handlerBudget := cfg.HandlerBudget()

	go func() {
		logger.Info("consuming ingest jobs", "stream", cfg.JobsStream)
		errc <- app.Queue.ConsumeIngestJobs(ctx, func(handlerCtx context.Context, job domain.IngestJob, attempt int) domain.Outcome {
			processCtx, cancel := context.WithTimeout(handlerCtx, handlerBudget)
			defer cancel()

			workerMetrics.StartJob()
			start := time.Now()
			outcome := app.ProcessUC.Process(processCtx, job, attempt)
			workerMetrics.FinishJob("docpipe-worker", time.Since(start), outcome)
			return outcome
		})
	}()

	go func() {
		logger.Info("consuming document events", "stream", cfg.EventsStream)
		errc <- app.Queue.ConsumeEvents(ctx, func(handlerCtx context.Context, event domain.Event, attempt int) domain.Outcome {
			dispatchCtx, cancel := context.WithTimeout(handlerCtx, handlerBudget)
			defer cancel()

			start := time.Now()
			outcome := app.DispatchUC.Dispatch(dispatchCtx, event, attempt)
			workerMetrics.FinishEvent("docpipe-worker", time.Since(start), outcome)
			return outcome
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			logger.Error("consumer stopped", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
