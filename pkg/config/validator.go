package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Server.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OPENAI_API_KEY is required when using the openai provider",
			})
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "DATABASE_URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embeddings.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embeddings.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > c.Retrieval.MaxTopK {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: fmt.Sprintf("top_k must be between 1 and %d", c.Retrieval.MaxTopK),
		})
	}

	if c.Upload.MaxFileSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "upload.max_file_size_mb",
			Message: "max_file_size_mb must be positive",
		})
	}

	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}
