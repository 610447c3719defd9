package services

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-qa-platform/internal/errs"
	"document-qa-platform/models"
)

type knowledgeFixture struct {
	knowledge *memKnowledge
	docs      *memDocs
	chunks    *memChunks
	service   *KnowledgeService
}

func newKnowledgeFixture() *knowledgeFixture {
	knowledge := newMemKnowledge()
	docs := newMemDocs()
	chunks := newMemChunks()
	return &knowledgeFixture{
		knowledge: knowledge,
		docs:      docs,
		chunks:    chunks,
		service:   NewKnowledgeService(knowledge, docs, chunks, localEmbedder()),
	}
}

func TestAddChunkAssignsOrdinalsAndEmbeds(t *testing.T) {
	f := newKnowledgeFixture()
	ctx := context.Background()
	assistantID := primitive.NewObjectID().Hex()

	first, err := f.service.AddChunk(ctx, "owner-1", assistantID, AddChunkInput{
		Content:  "Refunds are issued within 30 days.",
		Topic:    "Refunds",
		Keywords: []string{"Refund", " POLICY "},
	})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if first.Ordinal != 0 {
		t.Errorf("first ordinal = %d, want 0", first.Ordinal)
	}
	if len(first.Embedding) == 0 {
		t.Error("chunk not embedded on write")
	}
	for _, k := range first.Keywords {
		if k != "refund" && k != "policy" {
			t.Errorf("keyword not normalized: %q", k)
		}
	}

	second, err := f.service.AddChunk(ctx, "owner-1", assistantID, AddChunkInput{Content: "Another entry."})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if second.Ordinal != 1 {
		t.Errorf("second ordinal = %d, want 1", second.Ordinal)
	}
}

func TestAddChunkRequiresContent(t *testing.T) {
	f := newKnowledgeFixture()
	_, err := f.service.AddChunk(context.Background(), "owner-1", primitive.NewObjectID().Hex(), AddChunkInput{Content: "  "})
	if !errs.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestImportDocument(t *testing.T) {
	f := newKnowledgeFixture()
	ctx := context.Background()
	assistantID := primitive.NewObjectID().Hex()

	// Existing authored chunk occupies ordinal 0.
	if _, err := f.service.AddChunk(ctx, "owner-1", assistantID, AddChunkInput{Content: "Authored entry."}); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}

	doc := &models.Document{OwnerID: "owner-1", Name: "guide.pdf", Status: models.StatusReady}
	if err := f.docs.Insert(ctx, doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	records := []models.DocumentChunk{
		{ChunkID: "c0", DocumentID: doc.ID, OwnerID: "owner-1", Ordinal: 0, Content: "Imported one.", Embedding: []float32{1}},
		{ChunkID: "c1", DocumentID: doc.ID, OwnerID: "owner-1", Ordinal: 1, Content: "Imported two.", Embedding: []float32{2}},
	}
	if err := f.chunks.InsertBatch(ctx, records); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	n, err := f.service.ImportDocument(ctx, "owner-1", assistantID, doc.ID.Hex())
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d chunks, want 2", n)
	}

	stored, _ := f.knowledge.ByAssistant(ctx, assistantID)
	if len(stored) != 3 {
		t.Fatalf("knowledge base has %d chunks, want 3", len(stored))
	}
	for _, c := range stored {
		if c.Metadata.ImportedFromDocument == "" {
			continue // the authored chunk
		}
		if c.Metadata.ImportedFromDocument != doc.ID.Hex() {
			t.Errorf("provenance id = %q", c.Metadata.ImportedFromDocument)
		}
		if c.Metadata.ImportedFromDocumentName != "guide.pdf" {
			t.Errorf("provenance name = %q", c.Metadata.ImportedFromDocumentName)
		}
		if c.Ordinal < 1 {
			t.Errorf("imported chunk ordinal %d collides with authored chunk", c.Ordinal)
		}
		if len(c.Embedding) == 0 {
			t.Error("imported chunk lost its embedding")
		}
	}
}

func TestImportDocumentRequiresReady(t *testing.T) {
	f := newKnowledgeFixture()
	ctx := context.Background()

	doc := &models.Document{OwnerID: "owner-1", Name: "pending.txt", Status: models.StatusPending}
	if err := f.docs.Insert(ctx, doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	_, err := f.service.ImportDocument(ctx, "owner-1", primitive.NewObjectID().Hex(), doc.ID.Hex())
	if !errs.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for non-ready document", err)
	}
}
