package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type countingBackend struct {
	calls int32
}

func (c *countingBackend) Name() string   { return "counting" }
func (c *countingBackend) Dimension() int { return 4 }

func (c *countingBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.calls, 1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0, 0, 1}
	}
	return out, nil
}

func TestServiceInitializesBackendOnce(t *testing.T) {
	var inits int32
	svc := NewService(func(ctx context.Context) (Backend, error) {
		atomic.AddInt32(&inits, 1)
		return &countingBackend{}, nil
	}, 32)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Embed(context.Background(), "hello"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&inits); n != 1 {
		t.Errorf("factory ran %d times, want 1", n)
	}
}

func TestServiceRetriesFailedInit(t *testing.T) {
	var inits int32
	svc := NewService(func(ctx context.Context) (Backend, error) {
		if atomic.AddInt32(&inits, 1) == 1 {
			return nil, errors.New("transient dial failure")
		}
		return &countingBackend{}, nil
	}, 32)

	if _, err := svc.Embed(context.Background(), "first"); err == nil {
		t.Fatal("expected error from first init")
	}
	if _, err := svc.Embed(context.Background(), "second"); err != nil {
		t.Fatalf("retry after failed init: %v", err)
	}
	if n := atomic.LoadInt32(&inits); n != 2 {
		t.Errorf("factory ran %d times, want 2", n)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	svc := NewService(func(ctx context.Context) (Backend, error) {
		return &countingBackend{}, nil
	}, 2) // force several sub-batches

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, text := range texts {
		if vecs[i][0] != float32(len(text)) {
			t.Errorf("vector %d out of order: got %v for %q", i, vecs[i][0], text)
		}
	}
}

func TestLocalBackendDeterministic(t *testing.T) {
	backend := NewLocalBackend()
	ctx := context.Background()

	a, err := backend.Embed(ctx, []string{"the refund policy covers annual plans"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := backend.Embed(ctx, []string{"the refund policy covers annual plans"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	sim, err := CosineSimilarity(a[0], b[0])
	if err != nil {
		t.Fatalf("CosineSimilarity: %v", err)
	}
	if sim < 0.9999 {
		t.Errorf("identical text similarity = %v, want ~1", sim)
	}
}

func TestLocalBackendNormalized(t *testing.T) {
	backend := NewLocalBackend()
	vecs, err := backend.Embed(context.Background(), []string{"some document text here"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("vector norm = %v, want 1", norm)
	}
	if len(vecs[0]) != backend.Dimension() {
		t.Errorf("dimension = %d, want %d", len(vecs[0]), backend.Dimension())
	}
}

func TestLocalBackendSeparatesTopics(t *testing.T) {
	backend := NewLocalBackend()
	ctx := context.Background()

	vecs, err := backend.Embed(ctx, []string{
		"refund policy for annual subscription plans",
		"refund policy and billing for annual plans",
		"gardening tips for growing tomatoes outdoors",
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	near, _ := CosineSimilarity(vecs[0], vecs[1])
	far, _ := CosineSimilarity(vecs[0], vecs[2])
	if near <= far {
		t.Errorf("similar text (%v) not closer than unrelated text (%v)", near, far)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	var inits int32
	svc := NewService(func(ctx context.Context) (Backend, error) {
		atomic.AddInt32(&inits, 1)
		return &countingBackend{}, nil
	}, 32)

	vecs, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result, got %v", vecs)
	}
	if atomic.LoadInt32(&inits) != 0 {
		t.Error("empty batch should not initialize the backend")
	}
}
