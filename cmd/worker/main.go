package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/hybrid-search/internal/bootstrap"
	"github.com/kirillkom/hybrid-search/internal/config"
	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/observability/logging"
	"github.com/kirillkom/hybrid-search/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIndexRequested(ctx, func(handlerCtx context.Context, req domain.IndexRequest) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return handleIndexRequest(indexCtx, app, workerMetrics, req)
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func handleIndexRequest(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, req domain.IndexRequest) error {
	start := time.Now()
	m.StartDocument()

	if req.Delete {
		_, err := app.Provider.DeleteDocumentIndex(ctx, req.UserID, req.DocumentID)
		m.FinishDocument("worker", time.Since(start), 0, 0, err)
		if err != nil {
			slog.Error("document_delete_failed", "document_id", req.DocumentID, "error", err)
		} else {
			slog.Info("document_deleted", "document_id", req.DocumentID)
		}
		return err
	}

	report, err := app.Provider.UpdateDocumentIndex(ctx, req.UserID, domain.DocumentInput{
		DocumentID: req.DocumentID,
		Title:      req.Title,
		Chunks:     req.Chunks,
	})

	chunksIndexed, chunkErrors := 0, 0
	if report != nil {
		chunksIndexed, chunkErrors = report.ChunksIndexed, report.ErrorCount
	}
	m.FinishDocument("worker", time.Since(start), chunksIndexed, chunkErrors, err)

	if err != nil {
		slog.Error("document_index_failed", "document_id", req.DocumentID, "error", err)
		return err
	}
	slog.Info("document_indexed",
		"document_id", req.DocumentID,
		"chunks_indexed", chunksIndexed,
		"chunk_errors", chunkErrors,
	)
	return nil
}
