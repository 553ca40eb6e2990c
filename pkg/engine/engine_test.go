package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/loclean/loclean/pkg/llm"
)

// fakeBackend scripts one response per item, matched by the quoted item
// inside the rendered prompt, and counts decode calls.
type fakeBackend struct {
	responses map[string]string
	calls     int
}

func (f *fakeBackend) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.calls++
	for item, text := range f.responses {
		if strings.Contains(req.Prompt, fmt.Sprintf("%q", item)) {
			return llm.CompletionResponse{Text: text, FinishReason: "stop"}, nil
		}
	}
	return llm.CompletionResponse{}, fmt.Errorf("no scripted response for prompt")
}

func (f *fakeBackend) Name() string          { return "fake" }
func (f *fakeBackend) SupportsGrammar() bool { return true }
func (f *fakeBackend) Close() error          { return nil }

func newTestEngine(t *testing.T, backend llm.Backend) *Engine {
	t.Helper()
	e, err := NewFromBackend(backend, Config{
		Model:    "phi-3-mini",
		CacheDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCleanBatch(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"500g": `{"reasoning": "grams to kg", "value": 0.5, "unit": "kg"}`,
		"10kg": `{"reasoning": "already kg", "value": 10, "unit": "kg"}`,
	}}
	e := newTestEngine(t, backend)

	results, err := e.CleanBatch(context.Background(), []string{"500g", "10kg"}, "Convert to kg")
	if err != nil {
		t.Fatalf("CleanBatch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if v := results["500g"]["value"]; v != 0.5 {
		t.Errorf("500g value = %v, want 0.5", v)
	}
	if u := results["10kg"]["unit"]; u != "kg" {
		t.Errorf("10kg unit = %v, want kg", u)
	}
}

func TestCleanBatchIdempotentWithWarmCache(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"500g": `{"reasoning": "grams to kg", "value": 0.5, "unit": "kg"}`,
		"10kg": `{"reasoning": "already kg", "value": 10, "unit": "kg"}`,
	}}
	e := newTestEngine(t, backend)

	first, err := e.CleanBatch(context.Background(), []string{"500g", "10kg"}, "Convert to kg")
	if err != nil {
		t.Fatal(err)
	}
	if backend.calls != 2 {
		t.Fatalf("cold run made %d decode calls, want 2", backend.calls)
	}

	second, err := e.CleanBatch(context.Background(), []string{"500g", "10kg"}, "Convert to kg")
	if err != nil {
		t.Fatal(err)
	}
	if backend.calls != 2 {
		t.Errorf("warm run made %d extra decode calls, want 0", backend.calls-2)
	}

	for item, want := range first {
		got := second[item]
		if len(got) != len(want) {
			t.Fatalf("%s: warm result differs", item)
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("%s.%s = %v, want %v", item, k, got[k], v)
			}
		}
	}
}

func TestCleanBatchPartialFailure(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"500g":  `{"reasoning": "grams to kg", "value": 0.5, "unit": "kg"}`,
		"oops":  `{this is not json`,
		"1000g": `{"reasoning": "grams to kg", "value": 1.0, "unit": "kg"}`,
	}}
	e := newTestEngine(t, backend)

	results, err := e.CleanBatch(context.Background(), []string{"500g", "oops", "1000g"}, "Convert to kg")
	if err != nil {
		t.Fatalf("a malformed item aborted the batch: %v", err)
	}

	if results["500g"] == nil {
		t.Error("500g should have a result")
	}
	if results["oops"] != nil {
		t.Errorf("oops should be nil, got %v", results["oops"])
	}
	if results["1000g"] == nil {
		t.Error("1000g should have a result")
	}
}

func TestCleanBatchMissingRequiredField(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"500g": `{"value": 0.5, "unit": "kg"}`,
	}}
	e := newTestEngine(t, backend)

	results, err := e.CleanBatch(context.Background(), []string{"500g"}, "Convert to kg")
	if err != nil {
		t.Fatal(err)
	}
	if results["500g"] != nil {
		t.Errorf("result missing reasoning should be nil, got %v", results["500g"])
	}
}

func TestCleanBatchFailedItemsNotCached(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"oops": `{bad json`,
	}}
	e := newTestEngine(t, backend)

	if _, err := e.CleanBatch(context.Background(), []string{"oops"}, "task"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CleanBatch(context.Background(), []string{"oops"}, "task"); err != nil {
		t.Fatal(err)
	}
	if backend.calls != 2 {
		t.Errorf("failed item should be retried on the next batch, got %d calls", backend.calls)
	}
}

func TestCleanBatchEmpty(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend)

	results, err := e.CleanBatch(context.Background(), nil, "task")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty batch returned %v", results)
	}
	if backend.calls != 0 {
		t.Errorf("empty batch made %d decode calls", backend.calls)
	}
}
