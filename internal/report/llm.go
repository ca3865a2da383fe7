package report

import (
	"context"

	"github.com/exitschool/offmarket/pkg/anthropic"
	"github.com/exitschool/offmarket/pkg/openai"
)

// Completion is one LLM request made by the generator.
type Completion struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// JSON asks for a single JSON object when the provider supports it.
	JSON bool
}

// Completer is the LLM the generator drafts with.
type Completer interface {
	// Model names the model that produced the text, for the report record.
	Model() string
	Complete(ctx context.Context, req Completion) (string, error)
}

// OpenAICompleter drafts with OpenAI chat completions in JSON mode.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter creates a Completer over an OpenAI client.
func NewOpenAICompleter(client openai.Client, model string) *OpenAICompleter {
	if model == "" {
		model = openai.DefaultModel
	}
	return &OpenAICompleter{client: client, model: model}
}

// Model implements Completer.
func (c *OpenAICompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req Completion) (string, error) {
	resp, err := c.client.Complete(ctx, openai.CompletionRequest{
		Model:       c.model,
		System:      req.System,
		User:        req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		JSONMode:    req.JSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// AnthropicCompleter drafts with the Anthropic Messages API. It has no JSON
// mode, so extraction falls back to heading scans when the model ignores
// the JSON instruction.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCompleter creates a Completer over an Anthropic client.
func NewAnthropicCompleter(client anthropic.Client, model string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model}
}

// Model implements Completer.
func (c *AnthropicCompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, req Completion) (string, error) {
	temp := req.Temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   int64(req.MaxTokens),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(c.model, "report")
	return resp.Text(), nil
}
