package generation

import "context"

// Generator defines the interface for LLM text generation. It is the
// boundary between the orchestration core and external AI services; the
// core passes prompts through and never inspects how the text is produced.
type Generator interface {
	// GenerateText produces a completion for the given prompt.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - prompt: The fully rendered prompt text
	//
	// Returns:
	//   - The generated text
	//   - An error if generation fails (see errors.go for specific types)
	GenerateText(ctx context.Context, prompt string) (string, error)
}
