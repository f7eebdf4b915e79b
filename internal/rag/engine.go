package rag

import (
	"context"
	"fmt"

	"github.com/avvvet/buddy-voice/internal/llm"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/avvvet/buddy-voice/internal/prompts"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const DefaultTopK = 5

// Engine answers a question given the conversation so far
type Engine interface {
	Answer(ctx context.Context, query Query) (*Answer, error)
}

// Query is one question plus the session memory it belongs to.
// Zero TopK and ScoreThreshold fall back to the engine defaults.
type Query struct {
	Text           string
	History        []llms.ChatMessage
	TopK           int
	ScoreThreshold float32
}

// Chunk is a retrieved passage
type Chunk struct {
	Content  string
	Metadata map[string]any
	Score    float32
}

// Answer is the generated reply and the passages it was grounded on
type Answer struct {
	Text   string
	Chunks []Chunk
}

// Index is the similarity search side of a vector store
type Index interface {
	SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error)
}

// RetrievalEngine condenses follow-ups, retrieves passages and asks the model
type RetrievalEngine struct {
	index     Index
	model     llm.ChatModel
	topK      int
	threshold float32
	log       logrus.FieldLogger
}

// EngineOption configures a RetrievalEngine
type EngineOption func(*RetrievalEngine)

// WithTopK sets the default number of passages to retrieve
func WithTopK(k int) EngineOption {
	return func(e *RetrievalEngine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithScoreThreshold drops passages scoring below threshold
func WithScoreThreshold(threshold float32) EngineOption {
	return func(e *RetrievalEngine) { e.threshold = threshold }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(e *RetrievalEngine) { e.log = log }
}

func NewRetrievalEngine(index Index, model llm.ChatModel, opts ...EngineOption) *RetrievalEngine {
	e := &RetrievalEngine{
		index: index,
		model: model,
		topK:  DefaultTopK,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *RetrievalEngine) Answer(ctx context.Context, query Query) (*Answer, error) {
	question := query.Text

	if len(query.History) > 0 {
		standalone, err := e.condense(ctx, query.Text, query.History)
		if err != nil {
			return nil, err
		}
		question = standalone
	}

	docs, err := e.retrieve(ctx, question, query)
	if err != nil {
		return nil, err
	}

	passages := make([]string, 0, len(docs))
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, doc.PageContent)
		chunks = append(chunks, Chunk{
			Content:  doc.PageContent,
			Metadata: doc.Metadata,
			Score:    doc.Score,
		})
	}

	prompt, err := prompts.BuildAnswerPrompt(question, prompts.FormatContext(passages), query.History)
	if err != nil {
		return nil, err
	}

	text, err := llm.Generate(ctx, e.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: answer generation: %w", models.ErrCollaborator, err)
	}
	if text == "" {
		e.log.WithField("question", question).Warn("Language model returned a blank answer")
		text = prompts.FallbackMessage
	}

	e.log.WithFields(logrus.Fields{
		"question": question,
		"chunks":   len(chunks),
	}).Debug("Generated answer")

	return &Answer{Text: text, Chunks: chunks}, nil
}

// condense rewrites a follow-up question so it stands on its own
func (e *RetrievalEngine) condense(ctx context.Context, question string, history []llms.ChatMessage) (string, error) {
	prompt, err := prompts.BuildCondensePrompt(question, history)
	if err != nil {
		return "", err
	}

	standalone, err := llm.Generate(ctx, e.model, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: question condensing: %w", models.ErrCollaborator, err)
	}
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

func (e *RetrievalEngine) retrieve(ctx context.Context, question string, query Query) ([]schema.Document, error) {
	k := e.topK
	if query.TopK > 0 {
		k = query.TopK
	}

	threshold := e.threshold
	if query.ScoreThreshold > 0 {
		threshold = query.ScoreThreshold
	}

	var options []vectorstores.Option
	if threshold > 0 {
		options = append(options, vectorstores.WithScoreThreshold(threshold))
	}

	docs, err := e.index.SimilaritySearch(ctx, question, k, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", models.ErrCollaborator, err)
	}
	return docs, nil
}
