package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
)

const (
	fallbackTopK     = 5
	maxTopK          = 50
	maxContextLength = 4000

	answerSystemInstruction = `Answer the user's question using only the supplied context.
Do not use outside knowledge. If the context does not contain enough information
to answer, reply exactly: insufficient information.`
)

type QueryUseCase struct {
	embedder    ports.Embedder
	vectors     ports.VectorIndex
	chunks      ports.ChunkRepository
	generator   ports.AnswerGenerator
	defaultTopK int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	chunks ports.ChunkRepository,
	generator ports.AnswerGenerator,
	defaultTopK int,
) *QueryUseCase {
	if defaultTopK <= 0 || defaultTopK > maxTopK {
		defaultTopK = fallbackTopK
	}
	return &QueryUseCase{
		embedder:    embedder,
		vectors:     vectors,
		chunks:      chunks,
		generator:   generator,
		defaultTopK: defaultTopK,
	}
}

func (uc *QueryUseCase) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	if req.ProjectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("missing project id"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("empty query text"))
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeChunks
	}
	if mode != domain.ModeChunks && mode != domain.ModeAnswer {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("unknown mode %q", req.Mode))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// The namespace scope is the tenant boundary; the model filter keeps
	// vectors from different embedding models out of one comparison.
	matches, err := uc.vectors.Query(ctx, req.ProjectID, queryVector, topK, ports.VectorFilter{
		DocumentID:     req.DocumentID,
		EmbeddingModel: uc.embedder.ModelID(),
	})
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	if len(matches) == 0 {
		return &domain.QueryResult{Chunks: []domain.Chunk{}, Citations: []domain.Citation{}}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	rows, err := uc.chunks.GetByIDs(ctx, req.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk rows: %w", err)
	}

	byID := make(map[string]domain.Chunk, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	// Preserve match order; a vector without a row (mid-replacement) is skipped.
	ordered := make([]domain.Chunk, 0, len(matches))
	citations := make([]domain.Citation, 0, len(matches))
	for _, m := range matches {
		row, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		ordered = append(ordered, row)
		citations = append(citations, domain.Citation{
			DocumentID: row.DocumentID,
			ChunkID:    row.ID,
			ChunkIndex: row.ChunkIndex,
			PageStart:  row.PageStart,
			PageEnd:    row.PageEnd,
		})
	}

	result := &domain.QueryResult{Chunks: ordered, Citations: citations}
	if mode != domain.ModeAnswer {
		return result, nil
	}
	if len(ordered) == 0 {
		return result, nil
	}

	answer, err := uc.generator.Generate(ctx, answerSystemInstruction, buildContext(ordered), req.Query)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	result.Answer = answer
	return result, nil
}

// buildContext concatenates chunk contents in match order and truncates to
// maxContextLength runes.
func buildContext(chunks []domain.Chunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(chunk.Content)
	}
	runes := []rune(b.String())
	if len(runes) > maxContextLength {
		return string(runes[:maxContextLength])
	}
	return b.String()
}
