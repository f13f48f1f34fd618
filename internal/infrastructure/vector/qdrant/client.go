package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
)

// Client indexes chunk vectors in one Qdrant collection. The namespace
// (project id) is written into every point's payload and injected as a
// mandatory filter on every query and delete, so no call can cross tenants.
type Client struct {
	baseURL    string
	collection string
	vectorSize int
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, collection string, vectorSize int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		vectorSize: vectorSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Upsert(ctx context.Context, namespace string, points []ports.VectorPoint) error {
	if namespace == "" {
		return fmt.Errorf("qdrant upsert: empty namespace")
	}
	if len(points) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	body := make([]point, 0, len(points))
	for _, p := range points {
		body = append(body, point{
			ID:     p.ID,
			Vector: p.Vector,
			Payload: map[string]any{
				"project_id":      namespace,
				"document_id":     p.Metadata.DocumentID,
				"chunk_index":     p.Metadata.ChunkIndex,
				"source_name":     p.Metadata.SourceName,
				"content_hash":    p.Metadata.ContentHash,
				"embedding_model": p.Metadata.EmbeddingModel,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, map[string]any{"points": body}, nil, "upsert")
}

func (c *Client) Query(
	ctx context.Context,
	namespace string,
	vector []float32,
	topK int,
	filter ports.VectorFilter,
) ([]domain.VectorMatch, error) {
	if namespace == "" {
		return nil, fmt.Errorf("qdrant query: empty namespace")
	}

	must := []map[string]any{matchCondition("project_id", namespace)}
	if filter.DocumentID != "" {
		must = append(must, matchCondition("document_id", filter.DocumentID))
	}
	if filter.EmbeddingModel != "" {
		must = append(must, matchCondition("embedding_model", filter.EmbeddingModel))
	}

	request := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       map[string]any{"must": must},
	}

	var response struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, request, &response, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.VectorMatch, 0, len(response.Result))
	for _, r := range response.Result {
		out = append(out, domain.VectorMatch{
			ChunkID:    r.ID,
			DocumentID: payloadString(r.Payload, "document_id"),
			ChunkIndex: payloadInt(r.Payload, "chunk_index"),
			Score:      r.Score,
		})
	}
	return out, nil
}

func (c *Client) DeleteByDocument(ctx context.Context, namespace, documentID string) error {
	if namespace == "" {
		return fmt.Errorf("qdrant delete: empty namespace")
	}

	request := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				matchCondition("project_id", namespace),
				matchCondition("document_id", documentID),
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	err := c.do(ctx, http.MethodPost, url, request, nil, "delete")
	// A collection that was never created has nothing to delete.
	if err != nil && strings.Contains(err.Error(), "404") {
		return nil
	}
	return err
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	ensured := c.ensured
	c.ensureMu.Unlock()
	if ensured {
		return nil
	}

	request := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := c.newRequest(ctx, http.MethodPut, url, request)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the collection already exists.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}

	c.ensureMu.Lock()
	c.ensured = true
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, request any, response any, operation string) error {
	req, err := c.newRequest(ctx, method, url, request)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, request any) (*http.Request, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}
