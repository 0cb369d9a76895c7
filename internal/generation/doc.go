// Package generation provides the interface for interacting with external
// LLM services for text generation. It abstracts the details of the LLM API
// integration (Gemini), allowing pipelines to generate content without
// coupling to a specific provider.
package generation
