package httpadapter

import (
	"net/http"
)

const maxUploadBytes = 64 << 20

func (rt *Router) handleUpload(w http.ResponseWriter, r *http.Request, projectID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := rt.ingestor.Upload(r.Context(), projectID, header.Filename, contentType, file)
	if err != nil {
		rt.logger.Warn("upload failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) handleGetDocument(w http.ResponseWriter, r *http.Request, projectID string) {
	doc, err := rt.reader.Get(r.Context(), projectID, r.PathValue("id"))
	if err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) handleDeleteDocument(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := rt.ingestor.Delete(r.Context(), projectID, r.PathValue("id")); err != nil {
		mapDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleReprocess(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := rt.ingestor.Reprocess(r.Context(), projectID, r.PathValue("id")); err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
