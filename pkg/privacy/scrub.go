package privacy

import (
	"context"
	"fmt"
	"strings"

	"github.com/loclean/loclean/pkg/extract"
	"github.com/loclean/loclean/pkg/table"
)

// Mode selects how detected entities are replaced.
type Mode string

const (
	// ModeMask replaces each entity with an uppercase [TYPE] token.
	ModeMask Mode = "mask"
	// ModeFake replaces each entity with generated plausible data.
	ModeFake Mode = "fake"
)

// Scrubber detects and replaces PII. The LLM detector is optional:
// without one, person and address strategies are a configuration
// error.
type Scrubber struct {
	llm *LLMDetector
	gen *Generator
}

// ScrubberOption configures a Scrubber.
type ScrubberOption func(*scrubberConfig)

type scrubberConfig struct {
	extractor *extract.Extractor
	locale    string
	seed      uint64
}

// WithExtractor enables the LLM detector for person and address
// strategies.
func WithExtractor(ex *extract.Extractor) ScrubberOption {
	return func(c *scrubberConfig) { c.extractor = ex }
}

// WithLocale sets the locale for fake-mode replacements.
func WithLocale(locale string) ScrubberOption {
	return func(c *scrubberConfig) { c.locale = locale }
}

// WithSeed makes fake-mode output reproducible.
func WithSeed(seed uint64) ScrubberOption {
	return func(c *scrubberConfig) { c.seed = seed }
}

// NewScrubber creates a Scrubber.
func NewScrubber(opts ...ScrubberOption) (*Scrubber, error) {
	cfg := &scrubberConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Scrubber{gen: NewGenerator(cfg.locale, cfg.seed)}
	if cfg.extractor != nil {
		det, err := NewLLMDetector(cfg.extractor)
		if err != nil {
			return nil, err
		}
		s.llm = det
	}
	return s, nil
}

// validateStrategies checks every strategy is known and supported by
// the configured detectors.
func (s *Scrubber) validateStrategies(strategies []string) error {
	if len(strategies) == 0 {
		return fmt.Errorf("no scrub strategies given (available: %v)",
			append(RegexStrategies(), LLMStrategies()...))
	}
	for _, strategy := range strategies {
		switch {
		case IsRegexStrategy(strategy):
		case IsLLMStrategy(strategy):
			if s.llm == nil {
				return fmt.Errorf("strategy %q requires an inference engine", strategy)
			}
		default:
			return fmt.Errorf("unknown scrub strategy %q (available: %v)",
				strategy, append(RegexStrategies(), LLMStrategies()...))
		}
	}
	return nil
}

// ScrubString detects entities of the given strategies in text and
// replaces them per the mode. Overlapping detections are resolved
// longest-wins before replacement.
func (s *Scrubber) ScrubString(ctx context.Context, text string, strategies []string, mode Mode) (string, error) {
	if err := s.validateStrategies(strategies); err != nil {
		return "", err
	}
	if mode != ModeMask && mode != ModeFake {
		return "", fmt.Errorf("unknown scrub mode %q", mode)
	}

	entities := DetectRegex(text, strategies)
	if s.llm != nil {
		entities = append(entities, s.llm.Detect(ctx, text, strategies)...)
	}
	entities = ResolveOverlaps(entities)
	if len(entities) == 0 {
		return text, nil
	}

	// Replace back to front so earlier offsets stay valid.
	out := text
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		replacement := "[" + strings.ToUpper(e.Type) + "]"
		if mode == ModeFake {
			replacement = s.gen.Fake(e.Type)
		}
		out = out[:e.Start] + replacement + out[e.End:]
	}
	return out, nil
}

// ScrubTable scrubs every value in the named column, reusing one
// detection per distinct value. Nulls pass through untouched.
func (s *Scrubber) ScrubTable(ctx context.Context, t table.Table, column string, strategies []string, mode Mode) (table.Table, error) {
	if !t.HasColumn(column) {
		return table.Table{}, fmt.Errorf("column %q not found (columns: %v)", column, t.Columns())
	}
	if err := s.validateStrategies(strategies); err != nil {
		return table.Table{}, err
	}

	scrubbed := make(map[string]string)
	for _, value := range t.DistinctStrings(column) {
		clean, err := s.ScrubString(ctx, value, strategies, mode)
		if err != nil {
			return table.Table{}, err
		}
		scrubbed[value] = clean
	}

	src, _ := t.Column(column)
	out := make([]any, len(src))
	for i, v := range src {
		if v == nil {
			out[i] = nil
			continue
		}
		key := table.CastString(v)
		if clean, ok := scrubbed[key]; ok {
			out[i] = clean
		} else {
			out[i] = v
		}
	}
	return t.WithColumn(column, out)
}
