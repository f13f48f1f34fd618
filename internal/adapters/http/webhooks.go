package httpadapter

import (
	"encoding/json"
	"net/http"
)

type registerWebhookRequest struct {
	URL string `json:"url"`
}

type registerWebhookResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	URL       string `json:"url"`
	// Secret is returned once at registration and never again.
	Secret string `json:"secret"`
}

func (rt *Router) handleRegisterWebhook(w http.ResponseWriter, r *http.Request, projectID string) {
	var req registerWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook body")
		return
	}

	webhook, err := rt.webhooks.Register(r.Context(), projectID, req.URL)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerWebhookResponse{
		ID:        webhook.ID,
		ProjectID: webhook.ProjectID,
		URL:       webhook.URL,
		Secret:    webhook.Secret,
	})
}

func (rt *Router) handleRevokeWebhook(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := rt.webhooks.Revoke(r.Context(), projectID, r.PathValue("id")); err != nil {
		mapDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
