package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/avvvet/buddy-voice/internal/config"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (s *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	for _, opt := range options {
		opt(&s.opts)
	}
	return s.resp, s.err
}

func TestGenerate(t *testing.T) {
	model := &stubModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "  Replace the pads.\n"}},
	}}

	answer, err := Generate(context.Background(), model, "What next?")
	require.NoError(t, err)
	assert.Equal(t, "Replace the pads.", answer)

	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
	assert.Equal(t, float64(0), model.opts.Temperature)
}

func TestGenerate_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := Generate(context.Background(), &stubModel{err: boom}, "q")
	assert.ErrorIs(t, err, boom)

	_, err = Generate(context.Background(), &stubModel{resp: &llms.ContentResponse{}}, "q")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewAzureOpenAI_RequiresCredentials(t *testing.T) {
	_, err := NewAzureOpenAI(&config.Config{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestNewAzureOpenAI(t *testing.T) {
	client, err := NewAzureOpenAI(&config.Config{
		AzureOpenAIKey:        "key",
		AzureOpenAIEndpoint:   "https://example.openai.azure.com",
		ChatDeployment:        "gpt-4o",
		EmbeddingDeployment:   "text-embedding-3-large",
		AzureOpenAIAPIVersion: "2025-01-01-preview",
	})
	require.NoError(t, err)

	embedder, err := NewEmbedder(client)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}
