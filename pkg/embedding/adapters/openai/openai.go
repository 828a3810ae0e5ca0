// Package openai implements the embedding boundary on the OpenAI
// embeddings API.
package openai

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// Config holds the configuration for the OpenAI embedding adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the embedding model, e.g. "text-embedding-3-small".
	Model string
	// Dimensions is the vector length the model produces.
	Dimensions int
	// BaseURL overrides the API endpoint (for proxies and testing).
	BaseURL string
}

// OpenAIAdapter implements embedding.Embedder using the OpenAI API.
type OpenAIAdapter struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIAdapter creates a new OpenAI embedding adapter.
func NewOpenAIAdapter(config Config) (*OpenAIAdapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Dimensions <= 0 {
		config.Dimensions = DefaultDimensions
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      config.Model,
		dimensions: config.Dimensions,
	}, nil
}

// Embed implements embedding.Embedder.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	log.DebugContext(ctx, "Generating embedding", "model", a.model, "text_length", len(text))

	response, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(a.model),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate embedding", "error", err)
		return nil, apperrors.Wrap(apperrors.ErrEmbedding, "openai embeddings call failed: %v", err)
	}
	if len(response.Data) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrEmbedding, "openai returned no embedding data")
	}

	vector := response.Data[0].Embedding
	if len(vector) != a.dimensions {
		return nil, apperrors.Wrap(apperrors.ErrEmbedding,
			"model returned dimension %d, expected %d", len(vector), a.dimensions)
	}
	return vector, nil
}

// Dimensions implements embedding.Embedder.
func (a *OpenAIAdapter) Dimensions() int {
	return a.dimensions
}
