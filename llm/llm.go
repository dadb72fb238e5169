package llm

import "context"

// Client abstracts the language model provider used for report generation.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// GenerateContent sends a prompt and returns the provider's raw text
	// completion.
	GenerateContent(ctx context.Context, prompt string) (string, error)
	// SourceName returns a short provider label for logging (e.g. "Gemini").
	SourceName() string
}
