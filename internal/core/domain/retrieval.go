package domain

type QueryMode string

const (
	ModeChunks QueryMode = "chunks"
	ModeAnswer QueryMode = "answer"
)

type QueryRequest struct {
	ProjectID  string    `json:"-"`
	Query      string    `json:"query"`
	TopK       int       `json:"top_k"`
	DocumentID string    `json:"document_id,omitempty"`
	Mode       QueryMode `json:"mode"`
}

// VectorMatch is one ranked hit from the vector index.
type VectorMatch struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	PageStart  *int   `json:"page_start,omitempty"`
	PageEnd    *int   `json:"page_end,omitempty"`
}

type QueryResult struct {
	Answer    string     `json:"answer,omitempty"`
	Chunks    []Chunk    `json:"chunks"`
	Citations []Citation `json:"citations"`
}
