// Package loclean cleans messy tabular data with a locally run,
// grammar-constrained language model: free-form values like "500g" or
// "100 EUR" become structured (value, unit, reasoning) records or
// arbitrary schema-shaped records, merged back into the source table.
// A companion scrubber removes personally-identifiable information.
//
// All entry points take an explicit *engine.Engine. Construction is
// expensive (model load); build one engine per process with NewEngine
// and share it.
package loclean

import (
	"context"

	"github.com/loclean/loclean/pkg/engine"
	"github.com/loclean/loclean/pkg/extract"
	"github.com/loclean/loclean/pkg/privacy"
	"github.com/loclean/loclean/pkg/schema"
	"github.com/loclean/loclean/pkg/table"
)

// NewEngine builds an inference engine from the overrides merged with
// LOCLEAN_* environment variables, the .loclean.yaml config file and
// the defaults, in that precedence order.
func NewEngine(ctx context.Context, overrides engine.Config) (*engine.Engine, error) {
	return engine.New(ctx, overrides)
}

// Clean runs the default (reasoning, value, unit) extraction over the
// named column and returns the table with clean_value, clean_unit and
// clean_reasoning columns attached. Unresolvable values surface as
// nulls in those columns, never as an error.
func Clean(ctx context.Context, eng *engine.Engine, t table.Table, column, instruction string, opts table.Options) (table.Table, error) {
	return table.ProcessColumn(ctx, t, column, eng, instruction, opts)
}

// Extract extracts a schema-shaped record from a single text, with
// JSON repair and bounded retry. It returns an error once retries are
// exhausted.
func Extract(ctx context.Context, eng *engine.Engine, text string, s schema.Schema, instruction string, maxRetries int) (any, error) {
	ex := extract.New(eng, extract.WithMaxRetries(maxRetries))
	return ex.Extract(ctx, text, s, instruction)
}

// ExtractTable runs schema-shaped extraction over the named column and
// attaches a <column>_extracted column holding each record as JSON.
func ExtractTable(ctx context.Context, eng *engine.Engine, t table.Table, column string, s schema.Schema, instruction string, maxRetries int, opts table.Options) (table.Table, error) {
	ex := extract.New(eng, extract.WithMaxRetries(maxRetries))
	return table.ExtractColumn(ctx, t, column, ex, s, instruction, opts)
}

// ScrubOptions configure PII scrubbing.
type ScrubOptions struct {
	Strategies []string     // entity types to remove; see pkg/privacy
	Mode       privacy.Mode // mask or fake; default mask
	Locale     string       // fake-mode locale
	Seed       uint64       // fake-mode reproducibility
}

func newScrubber(eng *engine.Engine, opts ScrubOptions) (*privacy.Scrubber, privacy.Mode, error) {
	sopts := []privacy.ScrubberOption{
		privacy.WithLocale(opts.Locale),
		privacy.WithSeed(opts.Seed),
	}
	if eng != nil {
		sopts = append(sopts, privacy.WithExtractor(extract.New(eng)))
	}
	mode := opts.Mode
	if mode == "" {
		mode = privacy.ModeMask
	}
	s, err := privacy.NewScrubber(sopts...)
	return s, mode, err
}

// Scrub removes PII from a string. The engine may be nil when only
// regex strategies (email, phone, credit_card, ip) are requested;
// person and address need a model.
func Scrub(ctx context.Context, eng *engine.Engine, text string, opts ScrubOptions) (string, error) {
	s, mode, err := newScrubber(eng, opts)
	if err != nil {
		return "", err
	}
	return s.ScrubString(ctx, text, opts.Strategies, mode)
}

// ScrubTable removes PII from every value of the named column.
func ScrubTable(ctx context.Context, eng *engine.Engine, t table.Table, column string, opts ScrubOptions) (table.Table, error) {
	s, mode, err := newScrubber(eng, opts)
	if err != nil {
		return table.Table{}, err
	}
	return s.ScrubTable(ctx, t, column, opts.Strategies, mode)
}
