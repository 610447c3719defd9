package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-qa-platform/internal/errs"
)

// Document lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// validTransitions is the full lifecycle: a document enters processing
// from pending, lands in ready or error, and error may be retried.
var validTransitions = map[string][]string{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusReady, StatusError},
	StatusError:      {StatusProcessing},
	StatusReady:      {},
}

// CanTransition reports whether a status change is allowed.
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error for a disallowed change.
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return errs.NewValidationError("status", "invalid transition from "+from+" to "+to)
	}
	return nil
}

// Document is an uploaded file tracked through ingestion.
type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      string             `bson:"owner_id" json:"owner_id"`
	Name         string             `bson:"name" json:"name"`
	ContentType  string             `bson:"content_type" json:"content_type"`
	SizeBytes    int64              `bson:"size_bytes" json:"size_bytes"`
	BlobKey      string             `bson:"blob_key" json:"-"`
	Status       string             `bson:"status" json:"status"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ChunkCount   int                `bson:"chunk_count" json:"chunk_count"`
	// Degraded marks documents whose text came from a best-effort
	// extraction path (PDF, spreadsheets).
	Degraded            bool       `bson:"degraded,omitempty" json:"degraded,omitempty"`
	UploadedAt          time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	ProcessingStartedAt *time.Time `bson:"processing_started_at,omitempty" json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	SizeBytes int64  `json:"size_bytes"`
	Message   string `json:"message"`
	TaskID    string `json:"task_id,omitempty"` // set when processing was queued
}
