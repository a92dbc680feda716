package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
}

// Embedder generates embedding vectors through an embeddings API,
// batching requests to stay under provider input limits.
type Embedder struct {
	config EmbedderConfig
	client embeddings.EmbedderClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	var client embeddings.EmbedderClient
	var err error

	switch config.Provider {
	case "ollama":
		model := config.Model
		if model == "" {
			model = "nomic-embed-text:latest"
		}
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		client, err = ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(baseURL),
		)
	case "openai":
		model := config.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		client, err = openai.New(
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(model),
		)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{config: config, client: client}, nil
}

// NewEmbedderWithClient wires an existing embeddings client. Used by
// tests and by callers that share one API client across components.
func NewEmbedderWithClient(config EmbedderConfig, client embeddings.EmbedderClient) *Embedder {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Embedder{config: config, client: client}
}

// EmbedTexts embeds texts in order, in batches of the configured size.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.client.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", end-start, len(batch))
		}
		all = append(all, batch...)
	}

	return all, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}
