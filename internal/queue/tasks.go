package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/logger"
	"document-qa-platform/services"
)

const TaskIngestDocument = "ingest:process"

type IngestPayload struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
}

// NewIngestTask enqueues one document for the worker. Used for uploads
// too large to process in-request.
func NewIngestTask(documentID, ownerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		DocumentID: documentID,
		OwnerID:    ownerID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor runs queued tasks through the same ingestion service
// the HTTP path uses.
type TaskProcessor struct {
	ingestion *services.IngestionService
}

func NewTaskProcessor(ingestion *services.IngestionService) *TaskProcessor {
	return &TaskProcessor{ingestion: ingestion}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing queued ingest", "document_id", payload.DocumentID)

	_, err := p.ingestion.Ingest(ctx, payload.DocumentID, payload.OwnerID)
	if err != nil {
		// Bad input cannot become good by retrying; transient storage
		// or embedding failures can.
		if errs.IsValidation(err) || errs.IsExtraction(err) || errs.IsNotFound(err) {
			logger.Warn("queued ingest failed permanently", "document_id", payload.DocumentID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("queued ingest finished", "document_id", payload.DocumentID)
	return nil
}
