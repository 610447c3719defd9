package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentChunk is one embedded slice of an ingested document.
type DocumentChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChunkID    string             `bson:"chunk_id" json:"chunk_id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	OwnerID    string             `bson:"owner_id" json:"owner_id"`
	Ordinal    int                `bson:"ordinal" json:"ordinal"`
	Content    string             `bson:"content" json:"content"`
	Embedding  []float32          `bson:"embedding,omitempty" json:"-"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// KnowledgeChunk is an assistant-scoped knowledge entry: either authored
// directly or imported from an ingested document.
type KnowledgeChunk struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssistantID primitive.ObjectID `bson:"assistant_id" json:"assistant_id"`
	OwnerID     string             `bson:"owner_id" json:"owner_id"`
	Ordinal     int                `bson:"ordinal" json:"ordinal"`
	Content     string             `bson:"content" json:"content"`
	Topic       string             `bson:"topic,omitempty" json:"topic,omitempty"`
	Question    string             `bson:"question,omitempty" json:"question,omitempty"`
	Keywords    []string           `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Embedding   []float32          `bson:"embedding,omitempty" json:"-"`
	Metadata    ChunkMetadata      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ChunkMetadata records provenance for imported knowledge chunks.
type ChunkMetadata struct {
	ImportedFromDocument     string `bson:"imported_from_document,omitempty" json:"imported_from_document,omitempty"`
	ImportedFromDocumentName string `bson:"imported_from_document_name,omitempty" json:"imported_from_document_name,omitempty"`
	OriginalChunkIndex       int    `bson:"original_chunk_index,omitempty" json:"original_chunk_index,omitempty"`
}
