// Package llm provides the model backend interface and the prompt
// adapters for the supported model families.
package llm

import (
	"context"
	"time"

	"github.com/loclean/loclean/pkg/grammar"
)

// CompletionRequest is a request for grammar-constrained text
// generation.
type CompletionRequest struct {
	Prompt      string
	System      string           // optional system prompt, used by chat backends
	Grammar     *grammar.Grammar // output constraint; nil means unconstrained
	JSONSchema  map[string]any   // structured-output schema for backends without grammar support
	MaxTokens   int              // bound on generated tokens; caps worst-case per-item latency
	Stop        []string
	Temperature float64
}

// CompletionResponse is the generated text and why generation stopped.
type CompletionResponse struct {
	Text         string
	FinishReason string
}

// Backend is the abstraction over model runtimes. Implementations are
// not assumed safe for concurrent Complete calls; callers serialize.
type Backend interface {
	// Complete generates text for the request.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the backend identifier.
	Name() string

	// SupportsGrammar reports whether the backend enforces GBNF
	// grammars at decode time. Backends without grammar support fall
	// back to JSON-schema structured output.
	SupportsGrammar() bool

	// Close releases backend resources.
	Close() error
}

// BackendConfig holds common configuration for backends.
type BackendConfig struct {
	Model       string // model name (registry key or cloud model ID)
	ModelPath   string // local GGUF path, for the llama.cpp backend
	APIKey      string
	BaseURL     string
	ContextSize int // context window, llama.cpp only
	GPULayers   int // offloaded layers, llama.cpp only (0 = CPU)
	Timeout     time.Duration
}

// DefaultBackendConfig returns sensible defaults.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		ContextSize: 4096,
		Timeout:     120 * time.Second,
	}
}
