package services

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/logger"
	"document-qa-platform/internal/store"
	"document-qa-platform/models"
)

// KnowledgeService manages assistant-scoped knowledge chunks: direct
// authoring and bulk import from ingested documents.
type KnowledgeService struct {
	knowledge store.KnowledgeStore
	docs      store.DocumentStore
	chunks    store.ChunkStore
	embedder  *ai.Service
}

func NewKnowledgeService(
	knowledge store.KnowledgeStore,
	docs store.DocumentStore,
	chunks store.ChunkStore,
	embedder *ai.Service,
) *KnowledgeService {
	return &KnowledgeService{
		knowledge: knowledge,
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
	}
}

// AddChunkInput is an authored knowledge entry.
type AddChunkInput struct {
	Content  string
	Topic    string
	Question string
	Keywords []string
}

// AddChunk embeds and stores one authored chunk, appending it after the
// assistant's current highest ordinal.
func (s *KnowledgeService) AddChunk(ctx context.Context, ownerID, assistantID string, input AddChunkInput) (*models.KnowledgeChunk, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errs.NewValidationError("content", "content is required")
	}
	aid, err := primitive.ObjectIDFromHex(assistantID)
	if err != nil {
		return nil, errs.NewValidationError("assistant_id", "malformed id: "+assistantID)
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	maxOrdinal, err := s.knowledge.MaxOrdinal(ctx, assistantID)
	if err != nil {
		return nil, err
	}

	chunk := &models.KnowledgeChunk{
		AssistantID: aid,
		OwnerID:     ownerID,
		Ordinal:     maxOrdinal + 1,
		Content:     content,
		Topic:       strings.TrimSpace(input.Topic),
		Question:    strings.TrimSpace(input.Question),
		Keywords:    cleanKeywords(input.Keywords),
		Embedding:   embedding,
	}
	if err := s.knowledge.Insert(ctx, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// ImportDocument copies a ready document's chunks into an assistant's
// knowledge base with provenance metadata. Embeddings are reused, not
// recomputed. Returns how many chunks were imported.
func (s *KnowledgeService) ImportDocument(ctx context.Context, ownerID, assistantID, documentID string) (int, error) {
	aid, err := primitive.ObjectIDFromHex(assistantID)
	if err != nil {
		return 0, errs.NewValidationError("assistant_id", "malformed id: "+assistantID)
	}

	doc, err := s.docs.Get(ctx, ownerID, documentID)
	if err != nil {
		return 0, err
	}
	if doc.Status != models.StatusReady {
		return 0, errs.NewValidationError("document", "document is not ready (status: "+doc.Status+")")
	}

	docChunks, err := s.chunks.ByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if len(docChunks) == 0 {
		return 0, errs.NewValidationError("document", "document has no chunks to import")
	}

	maxOrdinal, err := s.knowledge.MaxOrdinal(ctx, assistantID)
	if err != nil {
		return 0, err
	}
	startIndex := maxOrdinal + 1

	imported := make([]models.KnowledgeChunk, len(docChunks))
	for i, c := range docChunks {
		imported[i] = models.KnowledgeChunk{
			AssistantID: aid,
			OwnerID:     ownerID,
			Ordinal:     startIndex + i,
			Content:     c.Content,
			Topic:       doc.Name,
			Embedding:   c.Embedding,
			Metadata: models.ChunkMetadata{
				ImportedFromDocument:     documentID,
				ImportedFromDocumentName: doc.Name,
				OriginalChunkIndex:       c.Ordinal,
			},
		}
	}

	if err := s.knowledge.InsertBatch(ctx, imported); err != nil {
		return 0, err
	}

	logger.Info("document imported into knowledge base",
		"document_id", documentID,
		"assistant_id", assistantID,
		"chunks", len(imported))
	return len(imported), nil
}

// Candidates exposes an assistant's knowledge base to the retriever.
func (s *KnowledgeService) Candidates(ctx context.Context, assistantID string) ([]Candidate, error) {
	chunks, err := s.knowledge.ByAssistant(ctx, assistantID)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(chunks))
	for i, c := range chunks {
		candidates[i] = Candidate{
			ID:         c.ID.Hex(),
			SourceID:   c.AssistantID.Hex(),
			SourceName: c.Topic,
			Ordinal:    c.Ordinal,
			Content:    c.Content,
			Topic:      c.Topic,
			Question:   c.Question,
			Keywords:   c.Keywords,
			Embedding:  c.Embedding,
		}
	}
	return candidates, nil
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ToLower(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
