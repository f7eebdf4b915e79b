package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ChatModel is the slice of llms.Model the assistant needs
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ErrEmptyResponse is returned when the model answers with no choices
var ErrEmptyResponse = errors.New("empty response from language model")

// Generate sends a single human prompt and returns the trimmed reply.
// Temperature is pinned to 0 so answers stay reproducible.
func Generate(ctx context.Context, model ChatModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
