package routes

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"document-qa-platform/internal/config"
	"document-qa-platform/internal/extract"
	"document-qa-platform/internal/logger"
	"document-qa-platform/internal/queue"
	"document-qa-platform/internal/store"
	"document-qa-platform/middleware"
	"document-qa-platform/models"
	"document-qa-platform/services"
	"document-qa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SetupDocumentRoutes registers upload, listing and lifecycle endpoints.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	docs store.DocumentStore,
	blobs store.BlobStore,
	ingestion *services.IngestionService,
	queueClient *asynq.Client,
	authMiddleware *middleware.AuthMiddleware,
) {
	group := router.Group("/documents")
	group.Use(authMiddleware.RequireAuth())

	group.POST("", handleUpload(cfg, docs, blobs, ingestion, queueClient))
	group.GET("", handleListDocuments(docs))
	group.GET("/:id", handleGetDocument(docs))
	group.POST("/:id/ingest", handleIngest(ingestion, queueClient))
	group.DELETE("/:id", handleDeleteDocument(ingestion))
}

func handleUpload(
	cfg *config.Config,
	docs store.DocumentStore,
	blobs store.BlobStore,
	ingestion *services.IngestionService,
	queueClient *asynq.Client,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if !typeAllowed(cfg.AllowedTypes, contentType) {
			utils.RespondWithError(c, http.StatusBadRequest, "unsupported_type",
				fmt.Sprintf("File type %q is not allowed", contentType), nil)
			return
		}
		if _, err := extract.DetectFormat(contentType, header.Filename); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "unsupported_type",
				fmt.Sprintf("Unsupported file type %q", contentType), nil)
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}

		blobKey := uuid.NewString()
		if err := blobs.Put(c.Request.Context(), blobKey, data); err != nil {
			utils.RespondWithInternalError(c, "Failed to store file", nil)
			return
		}

		doc := &models.Document{
			OwnerID:     ownerID,
			Name:        header.Filename,
			ContentType: contentType,
			SizeBytes:   header.Size,
			BlobKey:     blobKey,
			Status:      models.StatusPending,
			UploadedAt:  time.Now(),
		}
		if err := docs.Insert(c.Request.Context(), doc); err != nil {
			if delErr := blobs.Delete(c.Request.Context(), blobKey); delErr != nil {
				logger.Warn("orphaned blob after failed insert", "blob_key", blobKey, "error", delErr)
			}
			utils.RespondWithDomainError(c, err)
			return
		}

		// Small documents are processed in-request; large ones go to
		// the worker queue.
		if header.Size > cfg.SyncProcessingLimit {
			task, err := queue.NewIngestTask(doc.ID.Hex(), ownerID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create processing task", nil)
				return
			}
			info, err := queueClient.Enqueue(task)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
				return
			}

			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:        doc.ID.Hex(),
				Name:      doc.Name,
				Status:    doc.Status,
				SizeBytes: doc.SizeBytes,
				Message:   "Document accepted for background processing",
				TaskID:    info.ID,
			})
			return
		}

		processed, err := ingestion.Ingest(c.Request.Context(), doc.ID.Hex(), ownerID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.UploadResponse{
			ID:        processed.ID.Hex(),
			Name:      processed.Name,
			Status:    processed.Status,
			SizeBytes: processed.SizeBytes,
			Message:   "Document processed",
		})
	}
}

// typeAllowed checks the declared media type against the configured
// allow list. Browsers append parameters like charset, so only the base
// type is compared. An empty declared type defers to format detection
// by extension.
func typeAllowed(allowed []string, contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if base == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimSpace(a)) == base {
			return true
		}
	}
	return false
}

func handleListDocuments(docs store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		list, err := docs.List(c.Request.Context(), ownerID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": list,
			"count":     len(list),
		})
	}
}

func handleGetDocument(docs store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		doc, err := docs.Get(c.Request.Context(), ownerID, c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// handleIngest triggers (re)processing of a pending or failed document.
func handleIngest(ingestion *services.IngestionService, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)
		documentID := c.Param("id")

		if c.Query("async") == "true" {
			task, err := queue.NewIngestTask(documentID, ownerID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create processing task", nil)
				return
			}
			info, err := queueClient.Enqueue(task)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"document_id": documentID,
				"task_id":     info.ID,
				"message":     "Processing queued",
			})
			return
		}

		doc, err := ingestion.Ingest(c.Request.Context(), documentID, ownerID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

func handleDeleteDocument(ingestion *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		if err := ingestion.DeleteDocument(c.Request.Context(), ownerID, c.Param("id")); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	}
}
