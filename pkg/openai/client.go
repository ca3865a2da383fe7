// Package openai wraps the OpenAI chat completions API for single-shot
// report drafting.
package openai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gpt-4o-mini"

// Client defines the OpenAI operations used for report drafting.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one system+user chat completion.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	// JSONMode asks the model for a single JSON object.
	JSONMode bool
}

// CompletionResponse is the first choice of a chat completion.
type CompletionResponse struct {
	Model        string
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Option configures the client.
type Option func(*sdk.ClientConfig)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *sdk.ClientConfig) {
		if u != "" {
			c.BaseURL = strings.TrimRight(u, "/")
		}
	}
}

type sdkClient struct {
	client *sdk.Client
}

// NewClient creates an OpenAI client.
func NewClient(apiKey string, opts ...Option) Client {
	cfg := sdk.DefaultConfig(apiKey)
	for _, o := range opts {
		o(&cfg)
	}
	return &sdkClient{client: sdk.NewClientWithConfig(cfg)}
}

// IsReasoningModel reports whether model belongs to a family that takes
// max_completion_tokens and rejects a custom temperature.
func IsReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (c *sdkClient) Complete(ctx context.Context, in CompletionRequest) (*CompletionResponse, error) {
	model := in.Model
	if model == "" {
		model = DefaultModel
	}
	req := sdk.ChatCompletionRequest{
		Model: model,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleSystem, Content: in.System},
			{Role: sdk.ChatMessageRoleUser, Content: in.User},
		},
	}
	if in.JSONMode {
		req.ResponseFormat = &sdk.ChatCompletionResponseFormat{
			Type: sdk.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if IsReasoningModel(model) {
		req.MaxCompletionTokens = in.MaxTokens
	} else {
		req.MaxTokens = in.MaxTokens
		req.Temperature = in.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: response has no choices")
	}

	zap.L().Debug("openai: completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return &CompletionResponse{
		Model:        resp.Model,
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
