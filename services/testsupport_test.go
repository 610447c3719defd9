package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/store"
	"document-qa-platform/models"
)

// In-memory store fakes shared by the service tests.

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]*models.Document)}
}

func (m *memDocs) Insert(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	cp := *doc
	m.docs[doc.ID.Hex()] = &cp
	return nil
}

func (m *memDocs) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, errs.NewNotFoundError("document", id)
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errs.NewNotFoundError("document", id)
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (m *memDocs) Delete(ctx context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return errs.NewNotFoundError("document", id)
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocs) MarkProcessing(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errs.NewNotFoundError("document", id)
	}
	if doc.Status != models.StatusPending && doc.Status != models.StatusError {
		return nil, store.ErrConflict
	}
	now := time.Now()
	doc.Status = models.StatusProcessing
	doc.ProcessingStartedAt = &now
	doc.ErrorMessage = ""
	cp := *doc
	return &cp, nil
}

func (m *memDocs) MarkReady(ctx context.Context, id string, chunkCount int, degraded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errs.NewNotFoundError("document", id)
	}
	if doc.Status != models.StatusProcessing {
		return store.ErrConflict
	}
	now := time.Now()
	doc.Status = models.StatusReady
	doc.ChunkCount = chunkCount
	doc.Degraded = degraded
	doc.ErrorMessage = ""
	doc.ProcessedAt = &now
	return nil
}

func (m *memDocs) MarkError(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errs.NewNotFoundError("document", id)
	}
	if doc.Status != models.StatusProcessing {
		return store.ErrConflict
	}
	now := time.Now()
	doc.Status = models.StatusError
	doc.ErrorMessage = message
	doc.ProcessedAt = &now
	return nil
}

func (m *memDocs) FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, doc := range m.docs {
		if doc.Status == models.StatusProcessing && doc.ProcessingStartedAt != nil && doc.ProcessingStartedAt.Before(cutoff) {
			doc.Status = models.StatusError
			doc.ErrorMessage = message
			doc.ProcessedAt = &now
			n++
		}
	}
	return n, nil
}

type memChunks struct {
	mu        sync.Mutex
	chunks    []models.DocumentChunk
	failAfter int // fail InsertBatch after this many successful calls; -1 disables
	inserts   int
}

func newMemChunks() *memChunks {
	return &memChunks{failAfter: -1}
}

func (m *memChunks) InsertBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && m.inserts >= m.failAfter {
		return errs.NewStorageError("insert chunk batch", errors.New("simulated insert failure"))
	}
	m.inserts++
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memChunks) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID.Hex() != documentID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *memChunks) ByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DocumentChunk
	for _, c := range m.chunks {
		if c.DocumentID.Hex() == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChunks) ByOwner(ctx context.Context, ownerID string) ([]models.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DocumentChunk
	for _, c := range m.chunks {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, errs.NewNotFoundError("blob", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type memLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	locks int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (m *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	m.locks++
	return true, nil
}

func (m *memLocker) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

type memKnowledge struct {
	mu     sync.Mutex
	chunks []models.KnowledgeChunk
}

func newMemKnowledge() *memKnowledge {
	return &memKnowledge{}
}

func (m *memKnowledge) Insert(ctx context.Context, chunk *models.KnowledgeChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chunk.ID.IsZero() {
		chunk.ID = primitive.NewObjectID()
	}
	m.chunks = append(m.chunks, *chunk)
	return nil
}

func (m *memKnowledge) InsertBatch(ctx context.Context, chunks []models.KnowledgeChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memKnowledge) ByAssistant(ctx context.Context, assistantID string) ([]models.KnowledgeChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.KnowledgeChunk
	for _, c := range m.chunks {
		if c.AssistantID.Hex() == assistantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memKnowledge) MaxOrdinal(ctx context.Context, assistantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := -1
	for _, c := range m.chunks {
		if c.AssistantID.Hex() == assistantID && c.Ordinal > max {
			max = c.Ordinal
		}
	}
	return max, nil
}

func localEmbedder() *ai.Service {
	return ai.NewService(func(ctx context.Context) (ai.Backend, error) {
		return ai.NewLocalBackend(), nil
	}, 32)
}

var (
	_ store.DocumentStore  = (*memDocs)(nil)
	_ store.ChunkStore     = (*memChunks)(nil)
	_ store.BlobStore      = (*memBlobs)(nil)
	_ store.Locker         = (*memLocker)(nil)
	_ store.KnowledgeStore = (*memKnowledge)(nil)
)
