package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  host: "127.0.0.1"
  port: 9000
  rate_limit: 5
  rate_burst: 8

llm:
  provider: "openai"
  model: "gpt-4"
  api_key: "sk-test"
  max_tokens: 500
  temperature: 0.5

embeddings:
  model: "text-embedding-3-large"
  batch_size: 50

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 3072
  batch_size: 50

processor:
  chunk_size: 800
  chunk_overlap: 100

retrieval:
  top_k: 3
  max_top_k: 10

upload:
  max_file_size_mb: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
	assert.Equal(t, 8, cfg.Server.RateBurst)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, "text-embedding-3-large", cfg.Embeddings.Model)
	assert.Equal(t, "postgres://localhost:5432/test", cfg.Database.URL)
	assert.Equal(t, 3072, cfg.Database.VectorDim)
	assert.Equal(t, 800, cfg.Processor.ChunkSize)
	assert.Equal(t, 100, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Upload.MaxFileSizeMB)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Server.RateLimit)
	assert.Equal(t, 20, cfg.Server.RateBurst)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 1536, cfg.Database.VectorDim)
	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
	assert.Equal(t, 200, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Retrieval.MaxTopK)
	assert.Equal(t, 10, cfg.Upload.MaxFileSizeMB)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigOllamaDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  provider: ollama\n"), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embeddings.Model)
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DATABASE_URL", "postgres://env:5432/db")
	t.Setenv("CHUNK_SIZE", "750")
	t.Setenv("TOP_K_RESULTS", "7")
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://env:5432/db", cfg.Database.URL)
	assert.Equal(t, 750, cfg.Processor.ChunkSize)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	cfg.LLM.APIKey = "sk-test"
	cfg.Database.URL = "postgres://localhost:5432/quill"

	assert.Empty(t, cfg.Validate())
}

func TestValidateErrors(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	cfg.LLM.APIKey = ""
	cfg.LLM.Provider = "openai"
	cfg.Server.RateLimit = -1
	cfg.Database.URL = ""
	cfg.Processor.ChunkOverlap = 2000 // >= chunk_size
	cfg.Retrieval.TopK = 50

	errs := cfg.Validate()
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
		assert.NotEmpty(t, e.Error())
	}

	assert.True(t, fields["llm.api_key"])
	assert.True(t, fields["server.rate_limit"])
	assert.True(t, fields["database.url"])
	assert.True(t, fields["processor.chunk_overlap"])
	assert.True(t, fields["retrieval.top_k"])
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	cfg.Database.URL = "postgres://localhost:5432/quill"
	cfg.LLM.Provider = "cohere"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)

	found := false
	for _, e := range errs {
		if e.Field == "llm.provider" {
			found = true
		}
	}
	assert.True(t, found)
}
