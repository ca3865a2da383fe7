package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exitschool/offmarket/pkg/anthropic"
	"github.com/exitschool/offmarket/pkg/openai"
)

func TestOpenAICompleter(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"executive_summary\":\"ok\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(openai.NewClient("sk", openai.WithBaseURL(srv.URL)), "")
	assert.Equal(t, openai.DefaultModel, c.Model())

	text, err := c.Complete(context.Background(), Completion{System: "s", User: "u", MaxTokens: 2000, Temperature: 0.7, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"executive_summary":"ok"}`, text)
	assert.EqualValues(t, 2000, body["max_tokens"])
}

func TestAnthropicCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929",
			"content":[{"type":"text","text":"EXECUTIVE SUMMARY\nok"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(anthropic.NewClient("k", anthropic.WithBaseURL(srv.URL)), "claude-sonnet-4-5-20250929")
	text, err := c.Complete(context.Background(), Completion{User: "u", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "EXECUTIVE SUMMARY\nok", text)
}

func TestCompleter_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter(openai.NewClient("sk", openai.WithBaseURL(srv.URL)), "gpt-4o").Complete(context.Background(), Completion{User: "u"})
	assert.Error(t, err)
	_, err = NewAnthropicCompleter(anthropic.NewClient("k", anthropic.WithBaseURL(srv.URL)), "m").Complete(context.Background(), Completion{User: "u", MaxTokens: 1})
	assert.Error(t, err)
}
