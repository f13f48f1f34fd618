package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/docpipe/docpipe/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"status":  status,
		},
	})
}

func mapDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case domain.IsKind(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsKind(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case domain.IsKind(err, domain.ErrTemporary):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
