package privacy

import (
	"context"
	"fmt"

	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/pkg/extract"
	"github.com/loclean/loclean/pkg/schema"
)

// DetectionResult is the record the LLM detector asks the model for.
type DetectionResult struct {
	Persons   []string `json:"persons" description:"full or partial person names appearing in the text"`
	Addresses []string `json:"addresses" description:"physical or postal addresses appearing in the text"`
}

const detectInstruction = "Identify every person name and every physical address " +
	"mentioned in the input text. Return only values copied verbatim from the input. " +
	"Return empty lists when none are present."

// LLMStrategies returns the strategies that need model inference.
func LLMStrategies() []string {
	return []string{TypePerson, TypeAddress}
}

// IsLLMStrategy reports whether the strategy needs the LLM detector.
func IsLLMStrategy(strategy string) bool {
	return strategy == TypePerson || strategy == TypeAddress
}

// LLMDetector finds person names and addresses via the extractor.
type LLMDetector struct {
	extractor *extract.Extractor
	schema    schema.Schema
}

// NewLLMDetector builds a detector on top of an extractor.
func NewLLMDetector(ex *extract.Extractor) (*LLMDetector, error) {
	s, err := schema.FromStruct[DetectionResult](
		schema.WithDescription("PII entities found in a text"))
	if err != nil {
		return nil, fmt.Errorf("failed to build detection schema: %w", err)
	}
	return &LLMDetector{extractor: ex, schema: s}, nil
}

// Detect returns entities of the requested strategies found in text.
// Detection failure degrades to no entities: scrubbing continues with
// whatever the regexes found.
func (d *LLMDetector) Detect(ctx context.Context, text string, strategies []string) []Entity {
	wantPerson, wantAddress := false, false
	for _, s := range strategies {
		switch s {
		case TypePerson:
			wantPerson = true
		case TypeAddress:
			wantAddress = true
		}
	}
	if !wantPerson && !wantAddress {
		return nil
	}

	v, err := d.extractor.Extract(ctx, text, d.schema, detectInstruction)
	if err != nil {
		logger.Warn("LLM PII detection failed", "error", err)
		return nil
	}
	result, ok := v.(*DetectionResult)
	if !ok {
		logger.Warn("LLM PII detection returned unexpected shape", "type", fmt.Sprintf("%T", v))
		return nil
	}

	var out []Entity
	if wantPerson {
		for _, name := range result.Persons {
			out = append(out, FindAllPositions(text, name, TypePerson)...)
		}
	}
	if wantAddress {
		for _, addr := range result.Addresses {
			out = append(out, FindAllPositions(text, addr, TypeAddress)...)
		}
	}
	return out
}
