package llm

import "context"

// Provider produces a single text completion for a system-primed
// prompt. One prompt in, one markdown narrative out.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request holds one completion request.
type Request struct {
	// System primes the model before the prompt.
	System string
	// Prompt is the text to complete.
	Prompt string
	// MaxTokens caps the completion length. Providers substitute
	// their own default when zero.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float64
}

// Response holds the completion.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
