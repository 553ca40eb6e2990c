package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/loclean/loclean/internal/logger"
)

// LlamaCppBackend runs grammar-constrained completions against a
// llama.cpp server. When configured with a local GGUF path it spawns
// its own llama-server process with the requested context size and
// GPU-layer count; with a BaseURL it attaches to an already-running
// server.
type LlamaCppBackend struct {
	baseURL string
	client  *http.Client
	proc    *exec.Cmd // non-nil when this backend owns the server process
}

// NewLlamaCppBackend creates a llama.cpp backend. The context bounds
// server startup only.
func NewLlamaCppBackend(ctx context.Context, cfg BackendConfig) (*LlamaCppBackend, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	b := &LlamaCppBackend{
		client: &http.Client{Timeout: timeout},
	}

	if cfg.BaseURL != "" {
		b.baseURL = cfg.BaseURL
		return b, nil
	}

	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("llama-cpp backend requires a model path or base URL")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	bin, err := exec.LookPath("llama-server")
	if err != nil {
		return nil, fmt.Errorf("llama-server binary not found in PATH: %w", err)
	}

	ctxSize := cfg.ContextSize
	if ctxSize == 0 {
		ctxSize = 4096
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to pick a server port: %w", err)
	}
	args := []string{
		"-m", cfg.ModelPath,
		"-c", strconv.Itoa(ctxSize),
		"-ngl", strconv.Itoa(cfg.GPULayers),
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--log-disable",
	}

	logger.Info("starting llama-server", "model", cfg.ModelPath, "ctx", ctxSize, "gpu_layers", cfg.GPULayers)
	proc := exec.Command(bin, args...)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start llama-server: %w", err)
	}

	b.proc = proc
	b.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	if err := b.waitReady(ctx, 60*time.Second); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// freePort asks the kernel for an unused local port. Each spawned
// server gets its own, so engines on one host never collide.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitReady polls the server health endpoint until the model is loaded,
// the timeout passes, or the context is cancelled.
func (b *LlamaCppBackend) waitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := b.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("llama-server did not become ready within %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

type llamaCppRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Grammar     string   `json:"grammar,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Temperature float64  `json:"temperature"`
	Stream      bool     `json:"stream"`
}

type llamaCppResponse struct {
	Content      string `json:"content"`
	Stop         bool   `json:"stop"`
	StoppedEOS   bool   `json:"stopped_eos"`
	StoppedLimit bool   `json:"stopped_limit"`
}

// Complete sends a completion request to the llama.cpp server.
func (b *LlamaCppBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	lcReq := llamaCppRequest{
		Prompt:      req.Prompt,
		NPredict:    req.MaxTokens,
		Stop:        req.Stop,
		Temperature: req.Temperature,
		Stream:      false,
	}
	if req.Grammar != nil {
		lcReq.Grammar = req.Grammar.GBNF
	}

	body, err := json.Marshal(lcReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("llama.cpp request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("llama.cpp returned status %d: %s", resp.StatusCode, string(raw))
	}

	lcResp, err := decodeCompletion(raw)
	if err != nil {
		return CompletionResponse{}, err
	}

	finish := "stop"
	if lcResp.StoppedLimit {
		finish = "length"
	}
	return CompletionResponse{Text: lcResp.Content, FinishReason: finish}, nil
}

// decodeCompletion accepts both response shapes the server can produce:
// a single completion object, or an array of them (first element's text
// payload wins).
func decodeCompletion(raw []byte) (llamaCppResponse, error) {
	var single llamaCppResponse
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}

	var many []llamaCppResponse
	if err := json.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return llamaCppResponse{}, fmt.Errorf("empty completion response")
		}
		return many[0], nil
	}

	return llamaCppResponse{}, fmt.Errorf("unrecognized completion response shape: %s", truncate(string(raw), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Name returns the backend identifier.
func (b *LlamaCppBackend) Name() string {
	return "llama-cpp"
}

// SupportsGrammar returns true: llama.cpp enforces GBNF at decode time.
func (b *LlamaCppBackend) SupportsGrammar() bool {
	return true
}

// Close stops the owned llama-server process, if any.
func (b *LlamaCppBackend) Close() error {
	if b.proc == nil || b.proc.Process == nil {
		return nil
	}
	if err := b.proc.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop llama-server: %w", err)
	}
	_, _ = b.proc.Process.Wait()
	b.proc = nil
	return nil
}

func init() {
	RegisterBackend("llama-cpp", func(ctx context.Context, cfg BackendConfig) (Backend, error) {
		return NewLlamaCppBackend(ctx, cfg)
	})
}
