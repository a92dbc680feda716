package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jmorr/quill/internal/models"
)

// SystemPrompt constrains answers to the retrieved context and asks the
// model to cite chunks by number.
const SystemPrompt = `You are a helpful assistant that answers questions based on the provided context from PDF documents.

Rules:
1. Only use information from the provided context
2. If the context doesn't contain enough information, say so
3. Cite which chunk(s) you used (e.g., "According to Chunk 2...")
4. Be concise and accurate
5. If you're unsure, acknowledge it`

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string // "openai" or "ollama"
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// ChatEngine generates grounded answers through a completion API.
type ChatEngine struct {
	config ChatConfig
	model  llms.Model
}

func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Model == "" {
		config.Model = "gpt-3.5-turbo"
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}

	model, err := newModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		model:  model,
	}, nil
}

func newModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case "ollama":
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(baseURL),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(config.APIKey),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// Answer generates a response grounded in the retrieved chunks.
func (ce *ChatEngine) Answer(ctx context.Context, question string, chunks []models.ScoredChunk) (*models.Answer, error) {
	return ce.generate(ctx, question, chunks, nil)
}

// AnswerStream is Answer with the model's token stream forwarded to fn.
func (ce *ChatEngine) AnswerStream(ctx context.Context, question string, chunks []models.ScoredChunk, fn func(chunk string) error) (*models.Answer, error) {
	return ce.generate(ctx, question, chunks, fn)
}

func (ce *ChatEngine) generate(ctx context.Context, question string, chunks []models.ScoredChunk, fn func(chunk string) error) (*models.Answer, error) {
	system, user := BuildPrompt(question, chunks)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	}
	if fn != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return fn(string(chunk))
		}))
	}

	response, err := ce.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM")
	}

	choice := response.Choices[0]
	return &models.Answer{
		Text:       choice.Content,
		Model:      ce.config.Model,
		TokensUsed: totalTokens(choice.GenerationInfo),
	}, nil
}

func totalTokens(info map[string]any) int {
	if info == nil {
		return 0
	}
	if total, ok := info["TotalTokens"].(int); ok {
		return total
	}
	prompt, _ := info["PromptTokens"].(int)
	completion, _ := info["CompletionTokens"].(int)
	return prompt + completion
}

// BuildPrompt renders the system and user messages for a question and
// its retrieved context. Chunks are enumerated so the model can cite
// them by number.
func BuildPrompt(question string, chunks []models.ScoredChunk) (string, string) {
	var contextBuilder strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&contextBuilder, "[Chunk %d]\n%s\n\n", i+1, chunk.Text)
	}

	user := fmt.Sprintf(`Context from PDF:
%s
Question: %s

Answer the question based on the context above. Include citations to specific chunks.`,
		contextBuilder.String(), question)

	return SystemPrompt, user
}
