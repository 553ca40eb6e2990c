// Package engine implements the inference engine: batch extraction of
// (reasoning, value, unit) records from raw strings using a
// grammar-constrained model, fronted by the persistent result cache.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/loclean/loclean/internal/cache"
	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/internal/models"
	"github.com/loclean/loclean/pkg/grammar"
	"github.com/loclean/loclean/pkg/llm"
	"github.com/loclean/loclean/pkg/schema"
)

// CleanResult is the default extraction record.
type CleanResult struct {
	Reasoning string  `json:"reasoning" description:"step-by-step justification" validate:"required"`
	Value     float64 `json:"value" description:"the extracted numeric value"`
	Unit      string  `json:"unit" description:"the unit of the value" validate:"required"`
}

// requiredFields must all be present in a parsed result for the default
// clean task; anything less is a per-item failure.
var requiredFields = []string{"reasoning", "value", "unit"}

// Engine owns the model backend, the prompt family, the compiled
// default grammar and the result cache. Construction is expensive
// (model load); build one per process and share it.
type Engine struct {
	backend llm.Backend
	family  llm.Family
	grammar *grammar.Grammar
	cache   *cache.Cache
	cfg     Config

	jsonSchema map[string]any // structured-output fallback for grammarless backends

	mu sync.Mutex // serializes decode calls; the model handle is not assumed thread-safe
}

// New builds an engine from the given overrides merged with the
// environment, config file and defaults. For the llama-cpp backend the
// model is resolved through the registry and downloaded if absent.
func New(ctx context.Context, overrides Config) (*Engine, error) {
	cfg, err := LoadConfig(overrides)
	if err != nil {
		return nil, err
	}

	bcfg := llm.BackendConfig{
		Model:       cfg.Model,
		ModelPath:   cfg.ModelPath,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		ContextSize: cfg.ContextSize,
		GPULayers:   cfg.GPULayers,
		Timeout:     cfg.Timeout,
	}
	if bcfg.APIKey == "" {
		bcfg.APIKey = llm.DetectAPIKey(cfg.Engine)
	}
	if cfg.Engine == "llama-cpp" && bcfg.ModelPath == "" && bcfg.BaseURL == "" {
		path, err := models.Ensure(ctx, cfg.Model, filepath.Join(cfg.CacheDir, "models"), false)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve model %q: %w", cfg.Model, err)
		}
		bcfg.ModelPath = path
	}

	backend, err := llm.NewBackend(ctx, cfg.Engine, bcfg)
	if err != nil {
		return nil, err
	}

	e, err := NewFromBackend(backend, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return e, nil
}

// NewFromBackend builds an engine around an already-constructed
// backend. The result cache is opened under cfg.CacheDir.
func NewFromBackend(backend llm.Backend, cfg Config) (*Engine, error) {
	g, err := grammar.Get("json")
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	cleanSchema, err := schema.FromStruct[CleanResult]()
	if err != nil {
		c.Close()
		return nil, err
	}

	return &Engine{
		backend:    backend,
		family:     llm.DetectFamily(cfg.Model),
		grammar:    g,
		cache:      c,
		cfg:        cfg,
		jsonSchema: cleanSchema.ToJSONSchema(),
	}, nil
}

// Backend returns the model backend.
func (e *Engine) Backend() llm.Backend {
	return e.backend
}

// Family returns the prompt-format family selected for the model.
func (e *Engine) Family() llm.Family {
	return e.family
}

// Cache returns the shared result cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Config returns the resolved configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Decode runs one completion call, serialized against all other decode
// calls on this engine.
func (e *Engine) Decode(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.Complete(ctx, req)
}

// Close releases the backend and the cache.
func (e *Engine) Close() error {
	cerr := e.cache.Close()
	if err := e.backend.Close(); err != nil {
		return err
	}
	return cerr
}

// CleanBatch extracts a (reasoning, value, unit) record for each item
// under the given instruction. The returned map has one entry per input
// item; a nil value marks an item that could not be extracted. Per-item
// failures are logged and never abort the batch, and each miss gets
// exactly one decode attempt.
func (e *Engine) CleanBatch(ctx context.Context, items []string, instruction string) (map[string]map[string]any, error) {
	results := make(map[string]map[string]any, len(items))
	if len(items) == 0 {
		return results, nil
	}

	hits := e.cache.GetBatch(items, instruction)
	misses := make([]string, 0, len(items))
	for _, item := range items {
		if raw, ok := hits[item]; ok {
			var parsed map[string]any
			if err := json.Unmarshal(raw, &parsed); err != nil {
				logger.Warn("discarding unreadable cache hit", "item", item, "error", err)
				misses = append(misses, item)
				continue
			}
			results[item] = parsed
		} else {
			misses = append(misses, item)
		}
	}

	if len(misses) == 0 {
		return results, nil
	}
	logger.Debug("clean batch", "items", len(items), "hits", len(hits), "misses", len(misses))

	fresh := make(map[string]any, len(misses))
	for _, item := range misses {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		parsed := e.cleanOne(ctx, item, instruction)
		results[item] = parsed
		if parsed != nil {
			fresh[item] = parsed
		}
	}

	e.cache.SetBatch(misses, instruction, fresh)
	return results, nil
}

// cleanOne runs a single grammar-constrained decode for one item and
// returns the parsed record, or nil on any failure.
func (e *Engine) cleanOne(ctx context.Context, item, instruction string) map[string]any {
	req := llm.CompletionRequest{
		Prompt:      e.family.Format(instruction, item),
		MaxTokens:   e.cfg.MaxTokens,
		Stop:        e.family.StopTokens(),
		Temperature: e.cfg.SamplingTemperature(),
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 256
	}
	if e.backend.SupportsGrammar() {
		req.Grammar = e.grammar
	} else {
		req.JSONSchema = e.jsonSchema
	}

	resp, err := e.Decode(ctx, req)
	if err != nil {
		logger.Warn("inference failed", "item", item, "error", err)
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		logger.Warn("model output is not valid JSON", "item", item, "error", err)
		return nil
	}

	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			logger.Warn("model output missing required field", "item", item, "field", field)
			return nil
		}
	}

	return parsed
}
