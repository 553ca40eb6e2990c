package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend wraps the Anthropic SDK. Structured output uses a
// forced tool call whose input schema mirrors the extraction schema.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(cfg BackendConfig) (*AnthropicBackend, error) {
	opts := []option.RequestOption{}

	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete sends a message request to Anthropic.
func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.JSONSchema != nil {
		properties, _ := req.JSONSchema["properties"].(map[string]any)
		required, _ := req.JSONSchema["required"].([]any)

		requiredStrings := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				requiredStrings = append(requiredStrings, s)
			}
		}

		params.Tools = []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        "extract_data",
					Description: anthropic.String("Extract structured data from the content"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: properties,
						Required:   requiredStrings,
					},
				},
			},
		}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool("extract_data")
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		switch blk := block.AsAny().(type) {
		case anthropic.TextBlock:
			content = blk.Text
		case anthropic.ToolUseBlock:
			// For structured output, the tool input IS the extracted data.
			data, err := json.Marshal(blk.Input)
			if err != nil {
				return CompletionResponse{}, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			content = string(data)
		}
	}

	return CompletionResponse{
		Text:         content,
		FinishReason: string(resp.StopReason),
	}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// SupportsGrammar returns false: the API accepts no decode grammar.
func (b *AnthropicBackend) SupportsGrammar() bool {
	return false
}

// Close is a no-op for the HTTP client.
func (b *AnthropicBackend) Close() error {
	return nil
}

func init() {
	RegisterBackend("anthropic", func(_ context.Context, cfg BackendConfig) (Backend, error) {
		return NewAnthropicBackend(cfg)
	})
}
