// Package extract generalizes the engine's fixed (reasoning, value,
// unit) extraction to arbitrary schemas, adding JSON repair and bounded
// retry with prompt escalation on validation failure.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/pkg/engine"
	"github.com/loclean/loclean/pkg/grammar"
	"github.com/loclean/loclean/pkg/llm"
	"github.com/loclean/loclean/pkg/schema"
)

// cacheVersion prefixes the cache instruction component so extractor
// entries never collide with the engine's clean entries, and schema
// switches never cross-hit.
const cacheVersion = "extract_v1"

// DefaultMaxRetries is the attempt bound when none is configured.
const DefaultMaxRetries = 3

// Extractor drives schema-shaped extraction through a shared engine.
type Extractor struct {
	engine     *engine.Engine
	maxRetries int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxRetries sets the total number of attempts per item. An item
// that fails validation on every attempt is a terminal failure.
func WithMaxRetries(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// New creates an Extractor sharing the engine's backend and cache.
func New(eng *engine.Engine, opts ...Option) *Extractor {
	ex := &Extractor{
		engine:     eng,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// ValidationFailedError is returned by Extract when every attempt
// failed validation.
type ValidationFailedError struct {
	Text     string
	Schema   string
	Attempts int
	Errors   []schema.ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", ve.Field, ve.Message))
	}
	detail := strings.Join(msgs, "; ")
	if detail == "" {
		detail = "output never parsed as JSON"
	}
	return fmt.Sprintf("extraction failed for schema %s after %d attempts: %s", e.Schema, e.Attempts, detail)
}

// Extract extracts a validated record from a single text. Unlike
// ExtractBatch it returns an error once retries are exhausted, since a
// single value has no partial-result representation.
func (ex *Extractor) Extract(ctx context.Context, text string, s schema.Schema, instruction string) (any, error) {
	results, err := ex.ExtractBatch(ctx, []string{text}, s, instruction)
	if err != nil {
		return nil, err
	}
	if v, ok := results[text]; ok && v != nil {
		return v, nil
	}
	return nil, &ValidationFailedError{Text: text, Schema: s.Name, Attempts: ex.maxRetries}
}

// ExtractBatch extracts one record per item. The returned map has an
// entry for every input item; nil marks an item whose attempts were all
// exhausted. Per-item failures never abort the batch.
func (ex *Extractor) ExtractBatch(ctx context.Context, items []string, s schema.Schema, instruction string) (map[string]any, error) {
	results := make(map[string]any, len(items))
	if len(items) == 0 {
		return results, nil
	}

	if instruction == "" {
		instruction = autoInstruction(s)
	}
	cacheInstr := cacheVersion + "::" + s.Name + "::" + instruction

	c := ex.engine.Cache()
	hits := c.GetBatch(items, cacheInstr)
	misses := make([]string, 0, len(items))
	for _, item := range items {
		raw, ok := hits[item]
		if !ok {
			misses = append(misses, item)
			continue
		}
		v, err := s.Unmarshal(raw)
		if err != nil {
			logger.Warn("discarding unreadable cache hit", "item", item, "error", err)
			misses = append(misses, item)
			continue
		}
		results[item] = v
	}

	if len(misses) == 0 {
		return results, nil
	}
	logger.Debug("extract batch", "schema", s.Name, "items", len(items), "misses", len(misses))

	var g *grammar.Grammar
	var jsonSchema map[string]any
	if ex.engine.Backend().SupportsGrammar() {
		var err error
		g, err = grammar.FromSchema(s)
		if err != nil {
			return nil, err
		}
	} else {
		jsonSchema = s.ToJSONSchema()
	}

	fresh := make(map[string]any, len(misses))
	for _, item := range misses {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		v, raw := ex.extractOne(ctx, item, s, instruction, g, jsonSchema)
		results[item] = v
		if v != nil {
			fresh[item] = json.RawMessage(raw)
		}
	}

	c.SetBatch(misses, cacheInstr, fresh)
	return results, nil
}

// extractOne runs the attempt loop for a single item. It returns the
// validated value and its canonical JSON, or (nil, nil) once all
// attempts are spent.
func (ex *Extractor) extractOne(ctx context.Context, item string, s schema.Schema, instruction string, g *grammar.Grammar, jsonSchema map[string]any) (any, []byte) {
	cfg := ex.engine.Config()
	family := ex.engine.Family()

	instr := instruction
	for attempt := 1; attempt <= ex.maxRetries; attempt++ {
		req := llm.CompletionRequest{
			Prompt:      family.Format(instr, item),
			Grammar:     g,
			JSONSchema:  jsonSchema,
			MaxTokens:   cfg.MaxTokens,
			Stop:        family.StopTokens(),
			Temperature: cfg.SamplingTemperature(),
		}
		if req.MaxTokens == 0 {
			req.MaxTokens = 256
		}

		resp, err := ex.engine.Decode(ctx, req)
		if err != nil {
			logger.Warn("inference failed", "item", item, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				return nil, nil
			}
			instr = escalate(instruction, s)
			continue
		}

		raw, v, verrs := parseAndValidate(resp.Text, s)
		if v != nil && len(verrs) == 0 {
			return v, raw
		}

		logger.Debug("validation failed", "item", item, "attempt", attempt, "errors", len(verrs))
		instr = escalate(instruction, s)
	}

	logger.Warn("extraction exhausted retries", "item", item, "schema", s.Name, "attempts", ex.maxRetries)
	return nil, nil
}

// parseAndValidate parses the model output (repairing it when the
// first parse fails) and validates the result against the schema.
func parseAndValidate(text string, s schema.Schema) ([]byte, any, []schema.ValidationError) {
	raw := []byte(strings.TrimSpace(text))
	if !json.Valid(raw) {
		raw = []byte(RepairJSON(text))
		if !json.Valid(raw) {
			return nil, nil, nil
		}
	}

	v, err := s.Unmarshal(raw)
	if err != nil {
		return nil, nil, nil
	}

	if verrs := s.Validate(v); len(verrs) > 0 {
		return nil, nil, verrs
	}
	return raw, v, nil
}

// autoInstruction derives the extraction task from the schema when the
// caller supplies none.
func autoInstruction(s schema.Schema) string {
	return "Extract the following fields from the input as JSON.\n" + s.ToPromptDescription()
}

// escalate restates the required schema in the instruction after a
// failed attempt.
func escalate(instruction string, s schema.Schema) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	fmt.Fprintf(&sb, "\n\nIMPORTANT: The output MUST strictly match the JSON Schema for %s. Required fields:\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(&sb, "- %s (%s)\n", f.Name, f.Type)
	}
	return sb.String()
}
