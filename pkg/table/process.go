package table

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/pkg/schema"
)

// Cleaner is the batch contract the column processor dispatches chunks
// to for the default (reasoning, value, unit) task.
type Cleaner interface {
	CleanBatch(ctx context.Context, items []string, instruction string) (map[string]map[string]any, error)
}

// BatchExtractor is the schema-shaped counterpart of Cleaner.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, items []string, s schema.Schema, instruction string) (map[string]any, error)
}

// Options tune chunking and dispatch.
type Options struct {
	BatchSize  int  // items per chunk; default 20
	Parallel   bool // dispatch chunks across a bounded worker pool
	MaxWorkers int  // pool bound; default min(NumCPU, chunks)
}

// DefaultBatchSize is the chunk size when Options leaves it zero.
const DefaultBatchSize = 20

// joinKey is the temporary string-cast column both sides join on. It
// is always dropped from the output.
const joinKey = "__loclean_join_key"

// ProcessColumn cleans the named column: its distinct non-null,
// non-blank values are chunked, dispatched to the cleaner and the
// extracted fields are joined back as clean_value, clean_unit and
// clean_reasoning columns. A column with nothing to clean, or a run
// that extracts nothing, returns the input unchanged.
func ProcessColumn(ctx context.Context, t Table, column string, cleaner Cleaner, instruction string, opts Options) (Table, error) {
	if !t.HasColumn(column) {
		return Table{}, fmt.Errorf("column %q not found (columns: %v)", column, t.Columns())
	}

	distinct := t.DistinctStrings(column)
	if len(distinct) == 0 {
		logger.Warn("no distinct values to clean", "column", column)
		return t, nil
	}

	merged, err := dispatch(ctx, distinct, opts, func(ctx context.Context, chunk []string) (map[string]any, error) {
		res, err := cleaner.CleanBatch(ctx, chunk, instruction)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(res))
		for k, v := range res {
			if v == nil {
				out[k] = nil
			} else {
				out[k] = v
			}
		}
		return out, nil
	})
	if err != nil {
		return Table{}, err
	}

	keys := make([]any, 0, len(distinct))
	values := make([]any, 0, len(distinct))
	units := make([]any, 0, len(distinct))
	reasonings := make([]any, 0, len(distinct))
	extracted := 0
	for _, item := range distinct {
		res, _ := merged[item].(map[string]any)
		keys = append(keys, item)
		if res == nil {
			values = append(values, nil)
			units = append(units, nil)
			reasonings = append(reasonings, nil)
			continue
		}
		extracted++
		values = append(values, numField(res, "value"))
		units = append(units, strField(res, "unit"))
		reasonings = append(reasonings, strField(res, "reasoning"))
	}
	if extracted == 0 {
		logger.Warn("no values extracted, returning input unchanged", "column", column)
		return t, nil
	}

	lookup, err := New(
		[]string{joinKey, "clean_value", "clean_unit", "clean_reasoning"},
		map[string][]any{
			joinKey:           keys,
			"clean_value":     values,
			"clean_unit":      units,
			"clean_reasoning": reasonings,
		},
	)
	if err != nil {
		return Table{}, err
	}

	return joinBack(t, column, lookup)
}

// ExtractColumn runs schema-shaped extraction over the column and adds
// a single <column>_extracted column holding each record as JSON.
func ExtractColumn(ctx context.Context, t Table, column string, ex BatchExtractor, s schema.Schema, instruction string, opts Options) (Table, error) {
	if !t.HasColumn(column) {
		return Table{}, fmt.Errorf("column %q not found (columns: %v)", column, t.Columns())
	}

	distinct := t.DistinctStrings(column)
	if len(distinct) == 0 {
		logger.Warn("no distinct values to extract", "column", column)
		return t, nil
	}

	merged, err := dispatch(ctx, distinct, opts, func(ctx context.Context, chunk []string) (map[string]any, error) {
		return ex.ExtractBatch(ctx, chunk, s, instruction)
	})
	if err != nil {
		return Table{}, err
	}

	keys := make([]any, 0, len(distinct))
	records := make([]any, 0, len(distinct))
	extracted := 0
	for _, item := range distinct {
		keys = append(keys, item)
		res := merged[item]
		if res == nil {
			records = append(records, nil)
			continue
		}
		data, err := json.Marshal(res)
		if err != nil {
			records = append(records, nil)
			continue
		}
		extracted++
		records = append(records, string(data))
	}
	if extracted == 0 {
		logger.Warn("no values extracted, returning input unchanged", "column", column)
		return t, nil
	}

	lookup, err := New(
		[]string{joinKey, column + "_extracted"},
		map[string][]any{
			joinKey:               keys,
			column + "_extracted": records,
		},
	)
	if err != nil {
		return Table{}, err
	}

	return joinBack(t, column, lookup)
}

// joinBack attaches the lookup table via a temporary string-cast join
// key, then drops the key.
func joinBack(t Table, column string, lookup Table) (Table, error) {
	src, _ := t.Column(column)
	cast := make([]any, len(src))
	for i, v := range src {
		if v == nil {
			cast[i] = nil
		} else {
			cast[i] = CastString(v)
		}
	}

	keyed, err := t.WithColumn(joinKey, cast)
	if err != nil {
		return Table{}, err
	}
	joined, err := keyed.LeftJoin(lookup, joinKey)
	if err != nil {
		return Table{}, fmt.Errorf("failed to reattach results: %w", err)
	}
	return joined.DropColumn(joinKey), nil
}

// dispatch partitions items into chunks and runs fn over them,
// sequentially or across a bounded worker pool. A chunk whose fn call
// fails contributes nil for every item in that chunk; the failure
// never propagates.
func dispatch(ctx context.Context, items []string, opts Options, fn func(context.Context, []string) (map[string]any, error)) (map[string]any, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	chunks := make([][]string, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}

	workers := 1
	if opts.Parallel {
		workers = runtime.NumCPU()
		if opts.MaxWorkers > 0 && opts.MaxWorkers < workers {
			workers = opts.MaxWorkers
		}
		if len(chunks) < workers {
			workers = len(chunks)
		}
	}

	merged := make(map[string]any, len(items))

	runChunk := func(ctx context.Context, chunk []string) map[string]any {
		res, err := fn(ctx, chunk)
		if err != nil {
			logger.Warn("chunk failed, marking its items unresolved", "items", len(chunk), "error", err)
			res = nil
		}
		out := make(map[string]any, len(chunk))
		for _, item := range chunk {
			if res != nil {
				out[item] = res[item]
			} else {
				out[item] = nil
			}
		}
		return out
	}

	if workers <= 1 {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for k, v := range runChunk(ctx, chunk) {
				merged[k] = v
			}
		}
		return merged, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			out := runChunk(gctx, chunk)
			mu.Lock()
			for k, v := range out {
				merged[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merged, nil
}

// numField pulls a numeric field from a parsed record, tolerating the
// few shapes JSON decoding can produce.
func numField(m map[string]any, key string) any {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func strField(m map[string]any, key string) any {
	if s, ok := m[key].(string); ok {
		return s
	}
	return nil
}
