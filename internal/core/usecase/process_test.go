package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docpipe/docpipe/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func processDoc(status domain.DocumentStatus) *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		ProjectID:   "proj-1",
		SourceName:  "report.pdf",
		ContentType: "application/pdf",
		ContentHash: "abc123",
		StorageKey:  "proj-1/doc-1_report.pdf",
		Status:      status,
	}
}

func newProcessFixture(status domain.DocumentStatus) (*ProcessUseCase, *docRepoFake, *chunkRepoFake, *vectorIndexFake, *eventQueueFake) {
	docs := &docRepoFake{doc: processDoc(status)}
	chunks := &chunkRepoFake{}
	vectors := &vectorIndexFake{}
	events := &eventQueueFake{}
	uc := NewProcessUseCase(
		docs,
		chunks,
		&blobFake{data: []byte("raw")},
		&parserFake{parsed: domain.ParsedDocument{
			Text:  "hello world",
			Pages: []domain.PageSpan{{Page: 1, Start: 0, End: 11}},
		}},
		&chunkerFake{windows: []domain.TextWindow{
			{Index: 0, Start: 0, End: 5, Text: "hello"},
			{Index: 1, Start: 6, End: 11, Text: "world"},
		}},
		&embedderFake{vectors: [][]float32{{0.1}, {0.2}}},
		vectors,
		events,
		discardLogger(),
		120*time.Second,
	)
	return uc, docs, chunks, vectors, events
}

func TestProcessSuccess(t *testing.T) {
	uc, docs, chunks, vectors, events := newProcessFixture(domain.StatusUploaded)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}

	if len(docs.statusCalls) != 1 || docs.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("status calls = %+v, want single processing transition", docs.statusCalls)
	}
	if chunks.replacedDoc != "doc-1" || len(chunks.replaced) != 2 {
		t.Fatalf("ReplaceGeneration doc=%q rows=%d, want doc-1 with 2 rows", chunks.replacedDoc, len(chunks.replaced))
	}
	if chunks.replaced[0].ChunkIndex != 0 || chunks.replaced[1].ChunkIndex != 1 {
		t.Fatalf("chunk indexes = %d,%d, want 0,1", chunks.replaced[0].ChunkIndex, chunks.replaced[1].ChunkIndex)
	}
	if chunks.replaced[0].EmbeddingModel != "test-embed" {
		t.Fatalf("embedding model = %q", chunks.replaced[0].EmbeddingModel)
	}
	if ps := chunks.replaced[0].PageStart; ps == nil || *ps != 1 {
		t.Fatalf("page start = %v, want 1", ps)
	}

	if len(vectors.deleteCalls) != 1 || vectors.deleteCalls[0].namespace != "proj-1" {
		t.Fatalf("vector delete calls = %+v", vectors.deleteCalls)
	}
	if vectors.upsertedNS != "proj-1" || len(vectors.upserted) != 2 {
		t.Fatalf("upsert ns=%q points=%d", vectors.upsertedNS, len(vectors.upserted))
	}
	if vectors.upserted[0].ID != chunks.replaced[0].ID {
		t.Fatalf("vector id %q does not match chunk row id %q", vectors.upserted[0].ID, chunks.replaced[0].ID)
	}

	if len(events.published) != 1 || events.published[0].Type != domain.EventDocumentReady {
		t.Fatalf("events = %+v, want one document.ready", events.published)
	}
	if events.published[0].Data["chunk_count"] != 2 {
		t.Fatalf("chunk_count = %v, want 2", events.published[0].Data["chunk_count"])
	}
}

func TestProcessMalformedJobIsFatal(t *testing.T) {
	uc, _, _, _, _ := newProcessFixture(domain.StatusUploaded)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeFatal {
		t.Fatalf("outcome = %+v, want fatal", outcome)
	}
}

func TestProcessMissingDocumentAcks(t *testing.T) {
	uc, docs, _, _, _ := newProcessFixture(domain.StatusUploaded)
	docs.getErr = domain.WrapError(domain.ErrNotFound, "get", errors.New("no row"))

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}
}

func TestProcessStaleRedeliveryIsIdempotent(t *testing.T) {
	for _, status := range []domain.DocumentStatus{domain.StatusReady, domain.StatusDeleted} {
		uc, docs, chunks, vectors, events := newProcessFixture(status)

		outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 3)
		if outcome.Kind != domain.OutcomeAck {
			t.Fatalf("status %s: outcome = %+v, want ack", status, outcome)
		}
		if len(docs.statusCalls) != 0 {
			t.Fatalf("status %s: unexpected status writes %+v", status, docs.statusCalls)
		}
		if chunks.replacedDoc != "" || len(vectors.upserted) != 0 || len(vectors.deleteCalls) != 0 {
			t.Fatalf("status %s: unexpected chunk/vector writes", status)
		}
		if len(events.published) != 0 {
			t.Fatalf("status %s: unexpected events %+v", status, events.published)
		}
	}
}

func TestProcessReprocessJobOnDeletedDocumentAcks(t *testing.T) {
	uc, docs, chunks, _, _ := newProcessFixture(domain.StatusDeleted)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1", Reprocess: true}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}
	if len(docs.statusCalls) != 0 || chunks.replacedDoc != "" {
		t.Fatalf("a deleted document must never be reprocessed")
	}
}

func TestProcessCreatedStatusRetries(t *testing.T) {
	uc, _, _, _, _ := newProcessFixture(domain.StatusCreated)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 2)
	if outcome.Kind != domain.OutcomeRetry {
		t.Fatalf("outcome = %+v, want retry", outcome)
	}
	if outcome.Delay != 4*time.Second {
		t.Fatalf("delay = %s, want 4s for attempt 2", outcome.Delay)
	}
}

func TestProcessFailedReTriggerClaimsProcessing(t *testing.T) {
	uc, docs, chunks, _, events := newProcessFixture(domain.StatusFailed)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1", Reprocess: true}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}
	if len(docs.statusCalls) != 1 || docs.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("status calls = %+v, want processing claim before work", docs.statusCalls)
	}
	if docs.statusCalls[0].errMsg != "" {
		t.Fatalf("processing claim must clear the previous error, got %q", docs.statusCalls[0].errMsg)
	}
	if chunks.replacedDoc != "doc-1" {
		t.Fatalf("expected generation swap for re-trigger")
	}
	if len(events.published) != 1 || events.published[0].Type != domain.EventDocumentReady {
		t.Fatalf("events = %+v, want one document.ready", events.published)
	}
}

func TestProcessReprocessJobRunsOnReadyDocument(t *testing.T) {
	uc, docs, chunks, vectors, events := newProcessFixture(domain.StatusReady)

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1", Reprocess: true}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}
	if len(docs.statusCalls) != 1 || docs.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("status calls = %+v, want processing claim", docs.statusCalls)
	}
	if chunks.replacedDoc != "doc-1" || len(chunks.replaced) != 2 {
		t.Fatalf("re-trigger on a ready document must rebuild the generation, got %+v", chunks.replaced)
	}
	if len(vectors.deleteCalls) != 1 || len(vectors.upserted) != 2 {
		t.Fatalf("re-trigger must reindex vectors")
	}
	if len(events.published) != 1 || events.published[0].Type != domain.EventDocumentReady {
		t.Fatalf("events = %+v, want one document.ready", events.published)
	}
}

func TestProcessMissingBlobFailsPermanently(t *testing.T) {
	uc, docs, _, _, events := newProcessFixture(domain.StatusUploaded)
	blob := &blobFake{getErr: domain.WrapError(domain.ErrNotFound, "get", errors.New("gone"))}
	uc.blobs = blob

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack (permanent failure)", outcome)
	}
	if len(docs.statusCalls) != 2 || docs.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("status calls = %+v, want processing then failed", docs.statusCalls)
	}
	if docs.statusCalls[1].errMsg == "" {
		t.Fatalf("failed transition should carry an error message")
	}
	if len(events.published) != 1 || events.published[0].Type != domain.EventDocumentFailed {
		t.Fatalf("events = %+v, want one document.failed", events.published)
	}
}

func TestProcessUnparseableDocumentFailsPermanently(t *testing.T) {
	uc, docs, _, _, events := newProcessFixture(domain.StatusUploaded)
	uc.parser = &parserFake{err: domain.WrapError(domain.ErrInvalidInput, "parse", errors.New("bad pdf"))}

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack (permanent failure)", outcome)
	}
	if last := docs.statusCalls[len(docs.statusCalls)-1]; last.status != domain.StatusFailed {
		t.Fatalf("final status = %s, want failed", last.status)
	}
	if len(events.published) != 1 || events.published[0].Type != domain.EventDocumentFailed {
		t.Fatalf("events = %+v, want one document.failed", events.published)
	}
}

func TestProcessTransientParseErrorRetries(t *testing.T) {
	uc, docs, _, _, events := newProcessFixture(domain.StatusUploaded)
	uc.parser = &parserFake{err: errors.New("parser hiccup")}

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeRetry {
		t.Fatalf("outcome = %+v, want retry", outcome)
	}
	if last := docs.statusCalls[len(docs.statusCalls)-1]; last.status != domain.StatusProcessing {
		t.Fatalf("status = %s; transient errors must not mark the document failed", last.status)
	}
	if len(events.published) != 0 {
		t.Fatalf("no events expected on transient error, got %+v", events.published)
	}
}

func TestProcessEmbedFailureAbortsWholeAttempt(t *testing.T) {
	uc, _, chunks, vectors, _ := newProcessFixture(domain.StatusUploaded)
	uc.embedder = &embedderFake{embedErr: errors.New("ollama down")}

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeRetry {
		t.Fatalf("outcome = %+v, want retry", outcome)
	}
	if chunks.replacedDoc != "" || len(vectors.upserted) != 0 {
		t.Fatalf("no partial generation may be persisted on embed failure")
	}
}

func TestProcessEmbedCountMismatchRetries(t *testing.T) {
	uc, _, chunks, _, _ := newProcessFixture(domain.StatusUploaded)
	uc.embedder = &embedderFake{vectors: [][]float32{{0.1}}}

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeRetry {
		t.Fatalf("outcome = %+v, want retry", outcome)
	}
	if chunks.replacedDoc != "" {
		t.Fatalf("no generation swap on vector count mismatch")
	}
}

func TestProcessVectorUpsertFailureRetriesBeforeSwap(t *testing.T) {
	uc, _, chunks, vectors, events := newProcessFixture(domain.StatusUploaded)
	vectors.upsertErr = errors.New("qdrant unavailable")

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeRetry {
		t.Fatalf("outcome = %+v, want retry", outcome)
	}
	if chunks.replacedDoc != "" {
		t.Fatalf("row swap must not run when the vector upsert failed")
	}
	if len(events.published) != 0 {
		t.Fatalf("no ready event on failed attempt")
	}
}

func TestProcessLostEventDoesNotBlockAck(t *testing.T) {
	uc, _, chunks, _, _ := newProcessFixture(domain.StatusUploaded)
	uc.events = &eventQueueFake{publishErr: errors.New("nats flaking")}

	outcome := uc.Process(context.Background(), domain.IngestJob{ProjectID: "proj-1", DocumentID: "doc-1"}, 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack despite lost event", outcome)
	}
	if chunks.replacedDoc != "doc-1" {
		t.Fatalf("generation swap should have committed")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 64 * time.Second},
		{7, 120 * time.Second},
		{25, 120 * time.Second},
	}
	for _, tc := range cases {
		if got := domain.Backoff(tc.attempt, 120*time.Second); got != tc.want {
			t.Fatalf("Backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
