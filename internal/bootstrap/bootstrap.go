package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/core/ports"
	"github.com/docpipe/docpipe/internal/core/usecase"
	"github.com/docpipe/docpipe/internal/infrastructure/chunking"
	"github.com/docpipe/docpipe/internal/infrastructure/llm/ollama"
	"github.com/docpipe/docpipe/internal/infrastructure/parser"
	natsqueue "github.com/docpipe/docpipe/internal/infrastructure/queue/nats"
	"github.com/docpipe/docpipe/internal/infrastructure/repository/postgres"
	"github.com/docpipe/docpipe/internal/infrastructure/resilience"
	"github.com/docpipe/docpipe/internal/infrastructure/storage/localfs"
	"github.com/docpipe/docpipe/internal/infrastructure/vector/qdrant"
	"github.com/docpipe/docpipe/internal/infrastructure/webhook"
)

// App is the explicit dependency graph, built once at process start and
// injected by reference. Nothing here is globally reachable.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue *natsqueue.Queue

	IngestUC   *usecase.IngestUseCase
	ProcessUC  ports.DocumentProcessor
	DispatchUC ports.EventDispatcher
	QueryUC    ports.QueryService
	WebhookUC  ports.WebhookService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	chunks := postgres.NewChunkRepository(db)
	webhooks := postgres.NewWebhookRepository(db)
	eventLog := postgres.NewEventLogRepository(db)

	blobs, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := natsqueue.New(cfg.NATSURL, natsqueue.StreamConfig{
		JobsStream:    cfg.JobsStream,
		JobsSubject:   cfg.JobsSubject,
		EventsStream:  cfg.EventsStream,
		EventsSubject: cfg.EventsSubject,
		AckWait:       cfg.ConsumerAckWait,
		BatchSize:     cfg.WorkerBatchSize,
		BatchWait:     cfg.WorkerBatchWait,
	}, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}
	if err := queue.EnsureStreams(ctx); err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ensure streams: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorDimensions)
	chunker := chunking.NewSplitter(cfg.ChunkWindow, cfg.ChunkOverlap)
	parse := parser.New()
	sender := webhook.NewSender(cfg.WebhookTimeout)

	ingestUC := usecase.NewIngestUseCase(docs, chunks, blobs, vectors, queue, logger)
	processUC := usecase.NewProcessUseCase(docs, chunks, blobs, parse, chunker, embedder, vectors, queue, logger, cfg.JobRetryCap)
	dispatchUC := usecase.NewDispatchUseCase(webhooks, sender, eventLog, logger, cfg.EventRetryCap, cfg.WebhookMaxDeliveries)
	queryUC := usecase.NewQueryUseCase(embedder, vectors, chunks, generator, cfg.QueryTopK)
	webhookUC := usecase.NewWebhookUseCase(webhooks)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		DispatchUC: dispatchUC,
		QueryUC:    queryUC,
		WebhookUC:  webhookUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
