package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusCall struct {
	id     string
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	doc        *domain.Document
	getErr     error
	createErr  error
	statusErr  error
	hashExists bool
	hashErr    error

	created     *domain.Document
	statusCalls []statusCall
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = doc
	return nil
}

func (f *docRepoFake) Get(context.Context, string, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{id: id, status: status, errMsg: errMessage})
	return f.statusErr
}

func (f *docRepoFake) ActiveHashExists(context.Context, string, string) (bool, error) {
	return f.hashExists, f.hashErr
}

type chunkRepoFake struct {
	rows       []domain.Chunk
	getErr     error
	replaceErr error
	deleteErr  error

	replacedDoc string
	replaced    []domain.Chunk
	deletedDocs []string
	lastIDs     []string
}

func (f *chunkRepoFake) ReplaceGeneration(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replacedDoc = documentID
	f.replaced = chunks
	return nil
}

func (f *chunkRepoFake) GetByIDs(_ context.Context, _ string, ids []string) ([]domain.Chunk, error) {
	f.lastIDs = ids
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rows, nil
}

func (f *chunkRepoFake) DeleteByDocument(_ context.Context, documentID string) error {
	f.deletedDocs = append(f.deletedDocs, documentID)
	return f.deleteErr
}

type blobFake struct {
	data      []byte
	getErr    error
	putErr    error
	deleteErr error

	putKeys     []string
	deletedKeys []string
}

func (f *blobFake) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data, nil
}

func (f *blobFake) Put(_ context.Context, key string, data io.Reader, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	_, _ = io.ReadAll(data)
	f.putKeys = append(f.putKeys, key)
	return nil
}

func (f *blobFake) Delete(_ context.Context, key string) error {
	f.deletedKeys = append(f.deletedKeys, key)
	return f.deleteErr
}

type parserFake struct {
	parsed domain.ParsedDocument
	err    error
}

func (f *parserFake) Parse(context.Context, []byte, string, string) (domain.ParsedDocument, error) {
	if f.err != nil {
		return domain.ParsedDocument{}, f.err
	}
	return f.parsed, nil
}

type chunkerFake struct {
	windows []domain.TextWindow
}

func (f *chunkerFake) Split(string) []domain.TextWindow { return f.windows }

type embedderFake struct {
	vectors  [][]float32
	embedErr error
	queryVec []float32
	queryErr error
	model    string
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

func (f *embedderFake) ModelID() string {
	if f.model == "" {
		return "test-embed"
	}
	return f.model
}

type deleteCall struct {
	namespace  string
	documentID string
}

type vectorIndexFake struct {
	matches   []domain.VectorMatch
	queryErr  error
	upsertErr error
	deleteErr error

	upserted      []ports.VectorPoint
	upsertedNS    string
	deleteCalls   []deleteCall
	lastNamespace string
	lastTopK      int
	lastFilter    ports.VectorFilter
}

func (f *vectorIndexFake) Upsert(_ context.Context, namespace string, points []ports.VectorPoint) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertedNS = namespace
	f.upserted = points
	return nil
}

func (f *vectorIndexFake) Query(_ context.Context, namespace string, _ []float32, topK int, filter ports.VectorFilter) ([]domain.VectorMatch, error) {
	f.lastNamespace = namespace
	f.lastTopK = topK
	f.lastFilter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func (f *vectorIndexFake) DeleteByDocument(_ context.Context, namespace, documentID string) error {
	f.deleteCalls = append(f.deleteCalls, deleteCall{namespace: namespace, documentID: documentID})
	return f.deleteErr
}

type jobQueueFake struct {
	publishErr error
	published  []domain.IngestJob
}

func (f *jobQueueFake) PublishIngestJob(_ context.Context, job domain.IngestJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, job)
	return nil
}

func (f *jobQueueFake) ConsumeIngestJobs(context.Context, func(context.Context, domain.IngestJob, int) domain.Outcome) error {
	return nil
}

type eventQueueFake struct {
	publishErr error
	published  []domain.Event
}

func (f *eventQueueFake) PublishEvent(_ context.Context, event domain.Event) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *eventQueueFake) ConsumeEvents(context.Context, func(context.Context, domain.Event, int) domain.Outcome) error {
	return nil
}

type webhookRepoFake struct {
	hooks     []domain.Webhook
	listErr   error
	createErr error
	revokeErr error

	created *domain.Webhook
	revoked []string
}

func (f *webhookRepoFake) Create(_ context.Context, webhook *domain.Webhook) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = webhook
	return nil
}

func (f *webhookRepoFake) Revoke(_ context.Context, _, id string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *webhookRepoFake) ListActive(context.Context, string) ([]domain.Webhook, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hooks, nil
}

type eventLogFake struct {
	err      error
	appended []domain.Event
}

func (f *eventLogFake) Append(_ context.Context, event domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, event)
	return nil
}

type generatorFake struct {
	answer string
	err    error

	called      bool
	lastContext string
	lastQuery   string
}

func (f *generatorFake) Generate(_ context.Context, _, contextText, query string) (string, error) {
	f.called = true
	f.lastContext = contextText
	f.lastQuery = query
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type delivery struct {
	url       string
	signature string
	payload   []byte
}

type senderFake struct {
	mu         sync.Mutex
	errByURL   map[string]error
	deliveries []delivery
}

func (f *senderFake) Deliver(_ context.Context, url, signature string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{url: url, signature: signature, payload: payload})
	if f.errByURL != nil {
		return f.errByURL[url]
	}
	return nil
}
