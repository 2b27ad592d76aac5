package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/dexter/internal/config"
)

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ReasoningConfig
		wantErr error
	}{
		{"openai", config.ReasoningConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}, nil},
		{"openai base url", config.ReasoningConfig{Provider: "openai", APIKey: "sk-test", BaseURL: "http://localhost:11434/v1"}, nil},
		{"anthropic", config.ReasoningConfig{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", APIKey: "sk-ant-test"}, nil},
		{"anthropic base url", config.ReasoningConfig{Provider: "anthropic", APIKey: "sk-ant-test", BaseURL: "http://localhost"}, ErrUnsupportedOption},
		{"missing key", config.ReasoningConfig{Provider: "openai"}, ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewModel(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)
		})
	}

	_, err := NewModel(config.ReasoningConfig{Provider: "llama", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewModel_AnthropicUsesTranscript(t *testing.T) {
	model, err := NewModel(config.ReasoningConfig{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.IsType(t, completionModel{}, model)
}

func TestFromConfig_OpenAIRoundTrip(t *testing.T) {
	var roles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, m := range body.Messages {
			roles = append(roles, m.Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"tasks\":[\"look up AAPL\"]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := config.Default().Reasoning
	cfg.Model = "gpt-4o-mini"
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 100

	port, err := FromConfig(cfg)
	require.NoError(t, err)

	raw, err := port.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":["look up AAPL"]}`, string(raw))
	assert.Equal(t, []string{"system", "user"}, roles)
}

func TestCompletionModel_FoldsMessages(t *testing.T) {
	inner := &fakeModel{steps: []step{{text: `{"complete": true}`}}}
	model := completionModel{llm: inner}

	_, err := model.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, "Answer in JSON."),
		llms.TextParts(schema.ChatMessageTypeHuman, "Is the task done?"),
	}, llms.WithMaxTokens(64))
	require.NoError(t, err)

	require.Len(t, inner.messages, 1)
	sent := inner.messages[0]
	require.Len(t, sent, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, sent[0].Role)
	require.Len(t, sent[0].Parts, 1)
	assert.Equal(t, llms.TextContent{Text: "\n\nHuman: Answer in JSON.\n\nIs the task done?\n\nAssistant:"}, sent[0].Parts[0])
	assert.Equal(t, 64, inner.options[0].MaxTokens)
}

func TestTranscript(t *testing.T) {
	tests := []struct {
		name     string
		messages []llms.MessageContent
		want     string
	}{
		{
			name:     "human only",
			messages: []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, "hi")},
			want:     "\n\nHuman: hi\n\nAssistant:",
		},
		{
			name: "prior assistant turn",
			messages: []llms.MessageContent{
				llms.TextParts(schema.ChatMessageTypeHuman, "q1"),
				llms.TextParts(schema.ChatMessageTypeAI, "a1"),
				llms.TextParts(schema.ChatMessageTypeHuman, "q2"),
			},
			want: "\n\nHuman: q1\n\nAssistant: a1\n\nHuman: q2\n\nAssistant:",
		},
		{
			name:     "system only",
			messages: []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeSystem, "rules")},
			want:     "\n\nHuman: rules\n\nAssistant:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transcript(tt.messages))
		})
	}
}
