package llm

import (
	"fmt"

	"github.com/avvvet/buddy-voice/internal/config"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewAzureOpenAI builds a chat + embedding client against an Azure OpenAI resource
func NewAzureOpenAI(cfg *config.Config) (*openai.LLM, error) {
	if cfg.AzureOpenAIKey == "" || cfg.AzureOpenAIEndpoint == "" || cfg.ChatDeployment == "" {
		return nil, fmt.Errorf("%w: AZURE_OPENAI_KEY, AZURE_OPENAI_ENDPOINT and CHATGPT_MODEL_NAME are required", models.ErrConfiguration)
	}

	client, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithToken(cfg.AzureOpenAIKey),
		openai.WithBaseURL(cfg.AzureOpenAIEndpoint),
		openai.WithAPIVersion(cfg.AzureOpenAIAPIVersion),
		openai.WithModel(cfg.ChatDeployment),
		openai.WithEmbeddingModel(cfg.EmbeddingDeployment),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}
	return client, nil
}

// NewEmbedder wraps the client for use by a vector store
func NewEmbedder(client *openai.LLM) (embeddings.Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
