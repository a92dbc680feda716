package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorr/quill/internal/models"
	"github.com/jmorr/quill/pkg/llm"
)

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    "ollama",
		Model:       "mistral",
		BaseURL:     "http://localhost:11434",
		MaxTokens:   1000,
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigOpenAI(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider: "openai",
		Model:    "gpt-3.5-turbo",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigRejectsBadValues(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:  "openai",
		APIKey:    "sk-test",
		MaxTokens: -1,
	})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{
		Provider:    "openai",
		APIKey:      "sk-test",
		Temperature: 3,
	})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "Machine learning is a subset of AI.", PageNumber: 1, Index: 0}},
		{Chunk: models.Chunk{Text: "Neural networks learn from data.", PageNumber: 2, Index: 5}},
	}

	system, user := llm.BuildPrompt("What is machine learning?", chunks)

	assert.Equal(t, llm.SystemPrompt, system)
	assert.Contains(t, user, "[Chunk 1]")
	assert.Contains(t, user, "[Chunk 2]")
	assert.Contains(t, user, "Machine learning is a subset of AI.")
	assert.Contains(t, user, "Neural networks learn from data.")
	assert.Contains(t, user, "Question: What is machine learning?")
	assert.Contains(t, user, "Include citations")
}

func TestBuildPromptNoChunks(t *testing.T) {
	system, user := llm.BuildPrompt("Anything?", nil)

	assert.NotEmpty(t, system)
	assert.Contains(t, user, "Question: Anything?")
	assert.NotContains(t, user, "[Chunk")
}
