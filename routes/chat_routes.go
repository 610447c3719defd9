package routes

import (
	"net/http"

	"document-qa-platform/internal/sanitize"
	"document-qa-platform/middleware"
	"document-qa-platform/services"
	"document-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

type chatRequestBody struct {
	Query       string          `json:"query" binding:"required"`
	DocumentID  string          `json:"document_id"`
	Provider    string          `json:"provider"`
	ContextSize int             `json:"context_size"`
	History     []sanitize.Turn `json:"history"`
}

// SetupChatRoutes registers the question-answering endpoint.
func SetupChatRoutes(router *gin.Engine, chat *services.ChatService, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/chat")
	group.Use(authMiddleware.RequireAuth())

	group.POST("/send", func(c *gin.Context) {
		var body chatRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data",
				gin.H{"error": err.Error()})
			return
		}

		answer, err := chat.Answer(c.Request.Context(), services.ChatRequest{
			OwnerID:     middleware.GetUserID(c),
			Query:       body.Query,
			DocumentID:  body.DocumentID,
			Provider:    body.Provider,
			History:     body.History,
			ContextSize: body.ContextSize,
		})
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, answer)
	})
}
