package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// BackendFactory creates backends. The context bounds construction
// (server startup, model load), not the backend's lifetime.
type BackendFactory func(ctx context.Context, cfg BackendConfig) (Backend, error)

var registry = map[string]BackendFactory{}

// NewBackend creates a backend by engine name.
func NewBackend(ctx context.Context, name string, cfg BackendConfig) (Backend, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine: %s (available: %v)", name, AvailableBackends())
	}
	return factory(ctx, cfg)
}

// RegisterBackend adds a custom backend factory.
func RegisterBackend(name string, factory BackendFactory) {
	registry[name] = factory
}

// AvailableBackends returns the registered engine names, sorted.
func AvailableBackends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectAPIKey returns the API key from the environment for the given
// engine name, or empty when none is set.
func DetectAPIKey(engine string) string {
	switch engine {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}
