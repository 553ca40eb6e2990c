package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loclean/loclean/pkg/grammar"
)

func TestDecodeCompletionShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"single object", `{"content": "hello", "stop": true}`, "hello"},
		{"array of objects", `[{"content": "first"}, {"content": "second"}]`, "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeCompletion([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decodeCompletion failed: %v", err)
			}
			if resp.Content != tt.want {
				t.Errorf("Content = %q, want %q", resp.Content, tt.want)
			}
		})
	}
}

func TestDecodeCompletionErrors(t *testing.T) {
	if _, err := decodeCompletion([]byte(`[]`)); err == nil {
		t.Error("expected error for empty array")
	}
	if _, err := decodeCompletion([]byte(`not json`)); err == nil {
		t.Error("expected error for junk")
	}
}

func TestLlamaCppComplete(t *testing.T) {
	var gotReq llamaCppRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(llamaCppResponse{Content: `{"value": 1}`, Stop: true, StoppedEOS: true})
	}))
	defer srv.Close()

	b, err := NewLlamaCppBackend(context.Background(), BackendConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to build backend: %v", err)
	}
	defer b.Close()

	g, err := grammar.Get("json")
	if err != nil {
		t.Fatal(err)
	}

	resp, err := b.Complete(context.Background(), CompletionRequest{
		Prompt:    "<|user|>...",
		Grammar:   g,
		MaxTokens: 256,
		Stop:      []string{"<|end|>"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != `{"value": 1}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if gotReq.Grammar == "" {
		t.Error("grammar not forwarded to the server")
	}
	if gotReq.NPredict != 256 {
		t.Errorf("n_predict = %d, want 256", gotReq.NPredict)
	}
	if len(gotReq.Stop) != 1 || gotReq.Stop[0] != "<|end|>" {
		t.Errorf("stop = %v", gotReq.Stop)
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
}

func TestLlamaCppRequiresModelOrURL(t *testing.T) {
	if _, err := NewLlamaCppBackend(context.Background(), BackendConfig{}); err == nil {
		t.Error("expected error without model path or base URL")
	}
}

func TestFreePort(t *testing.T) {
	a, err := freePort()
	if err != nil {
		t.Fatalf("freePort failed: %v", err)
	}
	if a <= 0 || a > 65535 {
		t.Fatalf("port out of range: %d", a)
	}
	// The port must be bindable after freePort released it.
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a))
	if err != nil {
		t.Fatalf("port %d not bindable: %v", a, err)
	}
	l.Close()
}

func TestWaitReadyHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := &LlamaCppBackend{baseURL: srv.URL, client: srv.Client()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := b.waitReady(ctx, 60*time.Second)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("waitReady took %s after cancellation", elapsed)
	}
}

func TestRegistryNames(t *testing.T) {
	names := AvailableBackends()
	want := map[string]bool{"llama-cpp": false, "openai": false, "anthropic": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("backend %q not registered", name)
		}
	}

	if _, err := NewBackend(context.Background(), "no-such-engine", BackendConfig{}); err == nil {
		t.Error("expected error for unknown engine")
	}
}
