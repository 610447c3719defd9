package store

import (
	"context"
	"errors"
	"time"

	"document-qa-platform/models"
)

// ErrConflict is returned when a compare-and-set status transition finds
// the document in a different state than expected.
var ErrConflict = errors.New("document status changed concurrently")

// BlobStore holds raw uploaded file bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DocumentStore tracks document records and their lifecycle. Status
// changes are compare-and-set so concurrent ingest triggers cannot both
// observe a pending document.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, ownerID, id string) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, ownerID string) ([]models.Document, error)
	Delete(ctx context.Context, ownerID, id string) error

	// MarkProcessing moves pending or error to processing. ErrConflict
	// when the document is in any other state.
	MarkProcessing(ctx context.Context, id string) (*models.Document, error)
	// MarkReady moves processing to ready, records the chunk count and
	// clears any previous error.
	MarkReady(ctx context.Context, id string, chunkCount int, degraded bool) error
	// MarkError moves processing to error with a message.
	MarkError(ctx context.Context, id, message string) error
	// FailStaleProcessing errors out documents stuck in processing
	// since before the cutoff. Returns how many were swept.
	FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// ChunkStore persists embedded document chunks.
type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	ByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	ByOwner(ctx context.Context, ownerID string) ([]models.DocumentChunk, error)
}

// KnowledgeStore persists assistant-scoped knowledge chunks.
type KnowledgeStore interface {
	Insert(ctx context.Context, chunk *models.KnowledgeChunk) error
	InsertBatch(ctx context.Context, chunks []models.KnowledgeChunk) error
	ByAssistant(ctx context.Context, assistantID string) ([]models.KnowledgeChunk, error)
	// MaxOrdinal returns the highest ordinal for an assistant, or -1
	// when it has no chunks.
	MaxOrdinal(ctx context.Context, assistantID string) (int, error)
}

// Locker serializes work on a shared key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
