package ai

import (
	"context"
	"fmt"
	"math"
	"sync"

	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/logger"
)

// Backend turns text into fixed-dimension vectors.
type Backend interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BackendFactory builds the backend on first use. Construction can be
// expensive (network client setup), so the Service defers it until an
// embedding is actually requested.
type BackendFactory func(ctx context.Context) (Backend, error)

const defaultBatchSize = 32

// Service provides embeddings over a lazily initialized backend. The
// backend is constructed at most once; concurrent first callers share a
// single in-flight initialization and all observe its outcome. A failed
// initialization is not cached, so a later call retries.
type Service struct {
	factory   BackendFactory
	batchSize int

	mu      sync.Mutex
	backend Backend
	pending *initFuture
}

type initFuture struct {
	done    chan struct{}
	backend Backend
	err     error
}

func NewService(factory BackendFactory, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{factory: factory, batchSize: batchSize}
}

// ensureBackend returns the ready backend, running the factory if no
// initialization has succeeded yet.
func (s *Service) ensureBackend(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	if s.backend != nil {
		b := s.backend
		s.mu.Unlock()
		return b, nil
	}
	if s.pending != nil {
		fut := s.pending
		s.mu.Unlock()
		select {
		case <-fut.done:
			return fut.backend, fut.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fut := &initFuture{done: make(chan struct{})}
	s.pending = fut
	s.mu.Unlock()

	backend, err := s.factory(ctx)
	fut.backend = backend
	fut.err = err

	s.mu.Lock()
	if err == nil {
		s.backend = backend
		logger.Info("embedding backend ready", "backend", backend.Name(), "dimension", backend.Dimension())
	} else {
		logger.Error("embedding backend init failed", "error", err)
	}
	s.pending = nil
	s.mu.Unlock()

	close(fut.done)
	return backend, err
}

// Embed returns the vector for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in backend-sized sub-batches, preserving input
// order. Any sub-batch failure fails the whole call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	backend, err := s.ensureBackend(ctx)
	if err != nil {
		return nil, errs.NewEmbeddingError("init", err)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := backend.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, errs.NewEmbeddingError(backend.Name(), err)
		}
		if len(vecs) != end-start {
			return nil, errs.NewEmbeddingError(backend.Name(),
				fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), end-start))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimension reports the backend vector width, initializing it if needed.
func (s *Service) Dimension(ctx context.Context) (int, error) {
	backend, err := s.ensureBackend(ctx)
	if err != nil {
		return 0, err
	}
	return backend.Dimension(), nil
}

// CosineSimilarity computes similarity between two vectors. Mismatched
// dimensions are an error, not a silent zero.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
