package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/extract"
	"document-qa-platform/internal/logger"
	"document-qa-platform/internal/store"
	"document-qa-platform/models"
)

const ingestLockTTL = 10 * time.Minute

// IngestionService runs the document pipeline: download, extract,
// chunk, embed, persist. The same code path serves in-request ingestion
// and the queue worker.
type IngestionService struct {
	docs     store.DocumentStore
	chunks   store.ChunkStore
	blobs    store.BlobStore
	locker   store.Locker
	chunker  *ChunkerService
	embedder *ai.Service

	insertBatchSize  int
	embedBatchSize   int
	embedConcurrency int
}

func NewIngestionService(
	docs store.DocumentStore,
	chunks store.ChunkStore,
	blobs store.BlobStore,
	locker store.Locker,
	chunker *ChunkerService,
	embedder *ai.Service,
	insertBatchSize, embedBatchSize, embedConcurrency int,
) *IngestionService {
	if insertBatchSize <= 0 {
		insertBatchSize = 50
	}
	if embedBatchSize <= 0 {
		embedBatchSize = 32
	}
	if embedConcurrency <= 0 {
		embedConcurrency = 4
	}
	return &IngestionService{
		docs:             docs,
		chunks:           chunks,
		blobs:            blobs,
		locker:           locker,
		chunker:          chunker,
		embedder:         embedder,
		insertBatchSize:  insertBatchSize,
		embedBatchSize:   embedBatchSize,
		embedConcurrency: embedConcurrency,
	}
}

// Ingest processes one document end to end. Re-ingesting a ready
// document is a no-op returning the record. Concurrent triggers on the
// same document are serialized by a lock plus a compare-and-set status
// claim, so exactly one of them does the work.
func (s *IngestionService) Ingest(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := s.docs.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	if doc.Status == models.StatusReady {
		return doc, nil
	}
	if doc.Status == models.StatusProcessing {
		return doc, nil
	}

	acquired, err := s.locker.Acquire(ctx, documentID, ingestLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// Another worker holds the document; report its current state.
		return doc, nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), documentID); err != nil {
			logger.Warn("failed to release ingest lock", "document_id", documentID, "error", err)
		}
	}()

	doc, err = s.docs.MarkProcessing(ctx, documentID)
	if errors.Is(err, store.ErrConflict) {
		// Lost the race despite the lock (lock expiry, manual edits).
		return s.docs.Get(ctx, ownerID, documentID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.process(ctx, doc); err != nil {
		if markErr := s.docs.MarkError(ctx, documentID, err.Error()); markErr != nil {
			logger.Error("failed to record ingestion error", "document_id", documentID, "error", markErr)
		}
		return nil, err
	}

	return s.docs.Get(ctx, ownerID, documentID)
}

// process does the work between the processing and ready transitions.
// Any error it returns moves the document to the error state.
func (s *IngestionService) process(ctx context.Context, doc *models.Document) error {
	id := doc.ID.Hex()

	data, err := s.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return err
	}

	result, err := extract.Parse(data, doc.ContentType, doc.Name)
	if err != nil {
		return err
	}
	if result.Text == "" {
		return errs.NewExtractionError(doc.ContentType, fmt.Errorf("document contains no extractable text"))
	}

	textChunks := s.chunker.ChunkText(result.Text)
	if len(textChunks) == 0 {
		return errs.NewValidationError("content", "document produced no chunks")
	}

	// Retried documents may have chunks from a previous attempt.
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return err
	}

	embeddings, err := s.embedChunks(ctx, textChunks)
	if err != nil {
		return err
	}

	now := time.Now()
	records := make([]models.DocumentChunk, len(textChunks))
	for i, tc := range textChunks {
		records[i] = models.DocumentChunk{
			ChunkID:    uuid.NewString(),
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Ordinal:    tc.Ordinal,
			Content:    tc.Text,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
	}

	for start := 0; start < len(records); start += s.insertBatchSize {
		end := start + s.insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.chunks.InsertBatch(ctx, records[start:end]); err != nil {
			// Partial batches must not look like a complete document.
			if cleanupErr := s.chunks.DeleteByDocument(ctx, id); cleanupErr != nil {
				logger.Error("failed to clean up partial chunks", "document_id", id, "error", cleanupErr)
			}
			return err
		}
	}

	if err := s.docs.MarkReady(ctx, id, len(records), result.Degraded); err != nil {
		return err
	}

	logger.Info("document ingested",
		"document_id", id,
		"chunks", len(records),
		"method", result.Method,
		"degraded", result.Degraded)
	return nil
}

// embedChunks embeds chunk texts with a bounded worker pool. Workers
// write results by index, so output order matches chunk order no matter
// which batch finishes first.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []TextChunk) ([][]float32, error) {
	type batch struct {
		start int
		texts []string
	}

	jobs := make(chan batch)
	results := make([][]float32, len(chunks))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errOnce := make(chan error, 1)

	workers := s.embedConcurrency
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				vecs, err := s.embedder.EmbedBatch(ctx, job.texts)
				if err != nil {
					select {
					case errOnce <- err:
						cancel()
					default:
					}
					return
				}
				for i, v := range vecs {
					results[job.start+i] = v
				}
			}
		}()
	}

feed:
	for start := 0; start < len(chunks); start += s.embedBatchSize {
		end := start + s.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}
		select {
		case jobs <- batch{start: start, texts: texts}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errOnce:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteDocument removes the record, its chunks and its blob.
func (s *IngestionService) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.docs.Get(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.BlobKey); err != nil {
		return err
	}
	return s.docs.Delete(ctx, ownerID, documentID)
}

// FailStaleProcessing sweeps documents stuck in processing longer than
// maxAge, typically after a worker crash.
func (s *IngestionService) FailStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	n, err := s.docs.FailStaleProcessing(ctx, cutoff, "processing interrupted")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn("swept stale processing documents", "count", n)
	}
	return n, nil
}
