package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/docpipe/docpipe/internal/core/ports"
	"github.com/docpipe/docpipe/internal/observability/metrics"
)

type Router struct {
	ingestor ports.DocumentIngestor
	reader   ports.DocumentReader
	query    ports.QueryService
	webhooks ports.WebhookService
	logger   *slog.Logger
	metrics  *metrics.HTTPMetrics
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	query ports.QueryService,
	webhooks ports.WebhookService,
	logger *slog.Logger,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	router := &Router{
		ingestor: ingestor,
		reader:   reader,
		query:    query,
		webhooks: webhooks,
		logger:   logger,
		metrics:  httpMetrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", router.handleHealth)
	mux.Handle("GET /metrics", httpMetrics.Handler())

	mux.HandleFunc("POST /v1/documents", router.withProject(router.handleUpload))
	mux.HandleFunc("GET /v1/documents/{id}", router.withProject(router.handleGetDocument))
	mux.HandleFunc("DELETE /v1/documents/{id}", router.withProject(router.handleDeleteDocument))
	mux.HandleFunc("POST /v1/documents/{id}/reprocess", router.withProject(router.handleReprocess))
	mux.HandleFunc("POST /v1/query", router.withProject(router.handleQuery))
	mux.HandleFunc("POST /v1/webhooks", router.withProject(router.handleRegisterWebhook))
	mux.HandleFunc("DELETE /v1/webhooks/{id}", router.withProject(router.handleRevokeWebhook))

	var handler http.Handler = mux
	handler = metricsMiddleware(httpMetrics, handler)
	handler = accessLogMiddleware(logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
