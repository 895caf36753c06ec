package driven

import "context"

// LLMService generates answers from assembled prompts.
// Transient upstream failures are retried by the implementation; once the
// retries are exhausted it returns domain.ErrServiceUnavailable.
type LLMService interface {
	// Generate produces text from a single user prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat produces the assistant reply to a message list.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation.
type GenerateOptions struct {
	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// StopWords are sequences that stop generation.
	StopWords []string
}

// ChatMessage is one message of a chat request.
type ChatMessage struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures a chat completion.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
