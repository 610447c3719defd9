package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const geminiDimension = 768

// GeminiBackend embeds text through the Google Generative AI API
// (text-embedding-004 by default).
type GeminiBackend struct {
	client      *genai.Client
	model       string
	rateLimiter *rate.Limiter
}

// NewGeminiBackend dials the API. ratePerSecond caps request rate; the
// free tier rejects bursts well before it rejects volume.
func NewGeminiBackend(ctx context.Context, apiKey, model string, ratePerSecond int) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "text-embedding-004"
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}

	return &GeminiBackend{
		client:      client,
		model:       model,
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}, nil
}

func (g *GeminiBackend) Name() string { return "gemini/" + g.model }

func (g *GeminiBackend) Dimension() int { return geminiDimension }

func (g *GeminiBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("embedding-backend")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("embed.model", g.model),
		attribute.Int("embed.batch_size", len(texts)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	em := g.client.EmbeddingModel(g.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), embeddingCount(resp))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func (g *GeminiBackend) Close() error {
	return g.client.Close()
}

func embeddingCount(resp *genai.BatchEmbedContentsResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}
