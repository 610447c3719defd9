package llm

import "time"

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroq builds the Groq provider (free-tier cloud).
func NewGroq(apiKey, model string, timeout time.Duration) Provider {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return newChatCompatClient(ProviderGroq, groqBaseURL, apiKey, model, timeout)
}
