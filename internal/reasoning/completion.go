package reasoning

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// completionModel adapts a model that only reads the first text part of the
// first message, such as the anthropic completion client. All messages are
// folded into one Human/Assistant transcript.
type completionModel struct {
	llm llms.Model
}

var _ llms.Model = completionModel{}

func (m completionModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	prompt := llms.TextParts(schema.ChatMessageTypeHuman, transcript(messages))
	return m.llm.GenerateContent(ctx, []llms.MessageContent{prompt}, options...)
}

func (m completionModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// transcript renders messages in the "\n\nHuman: ...\n\nAssistant:" form the
// completion endpoint expects. System text is placed at the top of the
// first human turn.
func transcript(messages []llms.MessageContent) string {
	var system, turns strings.Builder
	for _, msg := range messages {
		text := textOf(msg)
		if text == "" {
			continue
		}
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(text)
		case schema.ChatMessageTypeAI:
			turns.WriteString("\n\nAssistant: ")
			turns.WriteString(text)
		default:
			turns.WriteString("\n\nHuman: ")
			if system.Len() > 0 {
				turns.WriteString(system.String())
				turns.WriteString("\n\n")
				system.Reset()
			}
			turns.WriteString(text)
		}
	}
	if system.Len() > 0 {
		turns.WriteString("\n\nHuman: ")
		turns.WriteString(system.String())
	}
	turns.WriteString("\n\nAssistant:")
	return turns.String()
}

func textOf(msg llms.MessageContent) string {
	var parts []string
	for _, p := range msg.Parts {
		if tc, ok := p.(llms.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
