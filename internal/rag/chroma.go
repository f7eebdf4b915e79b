package rag

import (
	"fmt"

	"github.com/avvvet/buddy-voice/internal/config"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// NewChromaIndex opens the document collection on a Chroma server
func NewChromaIndex(cfg *config.Config, embedder embeddings.Embedder) (Index, error) {
	if cfg.ChromaURL == "" || cfg.CollectionName == "" {
		return nil, fmt.Errorf("%w: CHROMA_URL and VECTOR_COLLECTION_NAME are required", models.ErrConfiguration)
	}

	store, err := chroma.New(
		chroma.WithChromaURL(cfg.ChromaURL),
		chroma.WithNameSpace(cfg.CollectionName),
		chroma.WithEmbedder(embedder),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Chroma collection %s: %w", models.ErrCollaborator, cfg.CollectionName, err)
	}
	return store, nil
}
