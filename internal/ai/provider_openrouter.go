package ai

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "qwen/qwen-2.5-72b-instruct"
)

// NewOpenRouterProvider creates a provider for OpenRouter, which speaks the
// OpenAI API plus attribution headers.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithModel(defaultOpenRouterModel),
		WithProviderName("openrouter"),
		WithHeader("HTTP-Referer", "https://pandai.org"),
		WithHeader("X-Title", "P&AI Learn"),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}
