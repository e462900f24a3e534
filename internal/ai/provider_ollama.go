package ai

import "strings"

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3:8b"
)

// NewOllamaProvider creates a provider for a self-hosted Ollama server.
// Ollama serves the OpenAI chat completions API under /v1 and needs no key.
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	opts = append([]OpenAIOption{
		WithBaseURL(strings.TrimSuffix(baseURL, "/") + "/v1"),
		WithModel(defaultOllamaModel),
		WithProviderName("ollama"),
	}, opts...)
	return NewOpenAIProvider("", opts...)
}
