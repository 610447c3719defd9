package routes

import (
	"net/http"

	"document-qa-platform/internal/config"
	"document-qa-platform/internal/llm"
	"document-qa-platform/middleware"
	"document-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

type validateKeyBody struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
}

// SetupProviderRoutes registers provider discovery and key validation.
func SetupProviderRoutes(router *gin.Engine, cfg *config.Config, llmRouter *llm.Router, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/providers")
	group.Use(authMiddleware.RequireAuth())

	group.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"providers": []gin.H{
				{"name": llm.ProviderOllama, "kind": "local", "base_url": cfg.OllamaBaseURL},
				{"name": llm.ProviderGroq, "kind": "cloud", "configured": cfg.GroqAPIKey != ""},
				{"name": llm.ProviderOpenRouter, "kind": "cloud", "configured": cfg.OpenRouterAPIKey != ""},
			},
		})
	})

	group.POST("/validate", func(c *gin.Context) {
		var body validateKeyBody
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data",
				gin.H{"error": err.Error()})
			return
		}

		if err := llmRouter.ValidateCredentials(c.Request.Context(), body.Provider, body.APIKey, body.BaseURL); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"provider": body.Provider,
				"valid":    false,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"provider": body.Provider,
			"valid":    true,
		})
	})
}
