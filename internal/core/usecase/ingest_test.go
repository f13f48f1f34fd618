package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/infrastructure/hashing"
)

func newIngestFixture(docs *docRepoFake) (*IngestUseCase, *chunkRepoFake, *blobFake, *vectorIndexFake, *jobQueueFake) {
	chunks := &chunkRepoFake{}
	blobs := &blobFake{}
	vectors := &vectorIndexFake{}
	jobs := &jobQueueFake{}
	uc := NewIngestUseCase(docs, chunks, blobs, vectors, jobs, discardLogger())
	return uc, chunks, blobs, vectors, jobs
}

func TestUploadHappyPath(t *testing.T) {
	docs := &docRepoFake{}
	uc, _, blobs, _, jobs := newIngestFixture(docs)

	body := []byte("quarterly numbers")
	doc, err := uc.Upload(context.Background(), "proj-1", "Q3 report.pdf", "application/pdf", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusUploaded {
		t.Fatalf("status = %s, want uploaded", doc.Status)
	}
	if doc.ContentHash != hashing.ContentHash(body) {
		t.Fatalf("content hash = %q", doc.ContentHash)
	}
	if !strings.HasPrefix(doc.StorageKey, "proj-1/"+doc.ID+"_") {
		t.Fatalf("storage key = %q", doc.StorageKey)
	}
	if strings.Contains(doc.StorageKey, " ") {
		t.Fatalf("storage key %q not sanitized", doc.StorageKey)
	}

	if len(blobs.putKeys) != 1 || blobs.putKeys[0] != doc.StorageKey {
		t.Fatalf("blob writes = %v", blobs.putKeys)
	}
	if docs.created == nil || docs.created.ID != doc.ID {
		t.Fatalf("document row not created")
	}
	if len(jobs.published) != 1 || jobs.published[0].DocumentID != doc.ID || jobs.published[0].ProjectID != "proj-1" {
		t.Fatalf("jobs = %+v", jobs.published)
	}
}

func TestUploadEmptyBody(t *testing.T) {
	uc, _, _, _, jobs := newIngestFixture(&docRepoFake{})

	_, err := uc.Upload(context.Background(), "proj-1", "empty.txt", "text/plain", strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
	if len(jobs.published) != 0 {
		t.Fatalf("no job may be published for a rejected upload")
	}
}

func TestUploadDuplicateContent(t *testing.T) {
	docs := &docRepoFake{hashExists: true}
	uc, _, blobs, _, jobs := newIngestFixture(docs)

	_, err := uc.Upload(context.Background(), "proj-1", "dup.txt", "text/plain", strings.NewReader("same bytes"))
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
	if len(blobs.putKeys) != 0 || len(jobs.published) != 0 {
		t.Fatalf("duplicate upload must not write blob or publish job")
	}
}

func TestUploadMissingProjectOrName(t *testing.T) {
	uc, _, _, _, _ := newIngestFixture(&docRepoFake{})

	if _, err := uc.Upload(context.Background(), "", "a.txt", "text/plain", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("missing project: error = %v", err)
	}
	if _, err := uc.Upload(context.Background(), "proj-1", "", "text/plain", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("missing name: error = %v", err)
	}
}

func TestDeleteCleansUpDerivedData(t *testing.T) {
	docs := &docRepoFake{doc: processDoc(domain.StatusReady)}
	uc, chunks, blobs, vectors, _ := newIngestFixture(docs)

	if err := uc.Delete(context.Background(), "proj-1", "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(docs.statusCalls) != 1 || docs.statusCalls[0].status != domain.StatusDeleted {
		t.Fatalf("status calls = %+v", docs.statusCalls)
	}
	if len(vectors.deleteCalls) != 1 || vectors.deleteCalls[0].namespace != "proj-1" {
		t.Fatalf("vector cleanup = %+v", vectors.deleteCalls)
	}
	if len(chunks.deletedDocs) != 1 || chunks.deletedDocs[0] != "doc-1" {
		t.Fatalf("chunk cleanup = %v", chunks.deletedDocs)
	}
	if len(blobs.deletedKeys) != 1 {
		t.Fatalf("blob cleanup = %v", blobs.deletedKeys)
	}
}

func TestDeleteAlreadyDeletedIsIdempotent(t *testing.T) {
	docs := &docRepoFake{doc: processDoc(domain.StatusDeleted)}
	uc, chunks, blobs, vectors, _ := newIngestFixture(docs)

	if err := uc.Delete(context.Background(), "proj-1", "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(docs.statusCalls) != 0 || len(vectors.deleteCalls) != 0 || len(chunks.deletedDocs) != 0 || len(blobs.deletedKeys) != 0 {
		t.Fatalf("repeat delete must not write")
	}
}

func TestDeleteToleratesCleanupFailures(t *testing.T) {
	docs := &docRepoFake{doc: processDoc(domain.StatusReady)}
	uc, chunks, blobs, vectors, _ := newIngestFixture(docs)
	vectors.deleteErr = errors.New("qdrant down")
	chunks.deleteErr = errors.New("pg down")
	blobs.deleteErr = errors.New("disk gone")

	// The row transition already happened; cleanup is best effort.
	if err := uc.Delete(context.Background(), "proj-1", "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
}

func TestReprocessPublishesReTriggerJob(t *testing.T) {
	for _, status := range []domain.DocumentStatus{domain.StatusFailed, domain.StatusReady} {
		docs := &docRepoFake{doc: processDoc(status)}
		uc, _, _, _, jobs := newIngestFixture(docs)

		if err := uc.Reprocess(context.Background(), "proj-1", "doc-1"); err != nil {
			t.Fatalf("status %s: Reprocess() error = %v", status, err)
		}
		if len(jobs.published) != 1 || jobs.published[0].DocumentID != "doc-1" {
			t.Fatalf("status %s: jobs = %+v", status, jobs.published)
		}
		if !jobs.published[0].Reprocess {
			t.Fatalf("status %s: job must carry the re-trigger mark", status)
		}
	}
}

func TestReprocessReadyDocumentRunsFullPipeline(t *testing.T) {
	docs := &docRepoFake{doc: processDoc(domain.StatusReady)}
	ingest, _, _, _, jobs := newIngestFixture(docs)

	if err := ingest.Reprocess(context.Background(), "proj-1", "doc-1"); err != nil {
		t.Fatalf("Reprocess() error = %v", err)
	}

	// Feed the published job through the processor: the re-trigger must pass
	// the gate and rebuild the generation instead of acking as stale.
	proc, procDocs, chunks, _, _ := newProcessFixture(domain.StatusReady)
	outcome := proc.Process(context.Background(), jobs.published[0], 1)
	if outcome.Kind != domain.OutcomeAck {
		t.Fatalf("outcome = %+v, want ack", outcome)
	}
	if len(procDocs.statusCalls) == 0 || procDocs.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("status calls = %+v, want processing claim", procDocs.statusCalls)
	}
	if chunks.replacedDoc != "doc-1" {
		t.Fatalf("reprocessing a ready document must rebuild its chunks")
	}
}

func TestReprocessRejectsNonTerminalStatuses(t *testing.T) {
	for _, status := range []domain.DocumentStatus{domain.StatusUploaded, domain.StatusProcessing, domain.StatusDeleted} {
		docs := &docRepoFake{doc: processDoc(status)}
		uc, _, _, _, jobs := newIngestFixture(docs)

		err := uc.Reprocess(context.Background(), "proj-1", "doc-1")
		if !domain.IsKind(err, domain.ErrConflict) {
			t.Fatalf("status %s: error = %v, want conflict", status, err)
		}
		if len(jobs.published) != 0 {
			t.Fatalf("status %s: no job may be published", status)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Q3 report.pdf", "Q3_report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"отчёт.txt", "_____.txt"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
