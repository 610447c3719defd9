package llm

import "time"

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouter builds the OpenRouter provider (paid cloud, broad model
// catalogue).
func NewOpenRouter(apiKey, model string, timeout time.Duration) Provider {
	if model == "" {
		model = "meta-llama/llama-3.1-8b-instruct"
	}
	return newChatCompatClient(ProviderOpenRouter, openRouterBaseURL, apiKey, model, timeout)
}
