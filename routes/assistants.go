package routes

import (
	"net/http"

	"document-qa-platform/middleware"
	"document-qa-platform/services"
	"document-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

type addChunkBody struct {
	Content  string   `json:"content" binding:"required"`
	Topic    string   `json:"topic"`
	Question string   `json:"question"`
	Keywords []string `json:"keywords"`
}

type importDocumentBody struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// SetupAssistantRoutes registers knowledge base management endpoints.
func SetupAssistantRoutes(router *gin.Engine, knowledge *services.KnowledgeService, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/assistants")
	group.Use(authMiddleware.RequireAuth())

	group.POST("/:id/chunks", func(c *gin.Context) {
		var body addChunkBody
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data",
				gin.H{"error": err.Error()})
			return
		}

		chunk, err := knowledge.AddChunk(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), services.AddChunkInput{
			Content:  body.Content,
			Topic:    body.Topic,
			Question: body.Question,
			Keywords: body.Keywords,
		})
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusCreated, chunk)
	})

	group.POST("/:id/import", func(c *gin.Context) {
		var body importDocumentBody
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data",
				gin.H{"error": err.Error()})
			return
		}

		imported, err := knowledge.ImportDocument(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), body.DocumentID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"assistant_id":    c.Param("id"),
			"document_id":     body.DocumentID,
			"imported_chunks": imported,
		})
	})
}
