package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/docpipe/docpipe/internal/core/domain"
)

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request, projectID string) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query body")
		return
	}
	req.ProjectID = projectID

	result, err := rt.query.Query(r.Context(), req)
	if err != nil {
		rt.logger.Warn("query failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
