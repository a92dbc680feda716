package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host      string  `yaml:"host"`
		Port      int     `yaml:"port"`
		RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"server"`

	LLM struct {
		Provider    string  `yaml:"provider"` // "openai" or "ollama"
		Model       string  `yaml:"model"`
		BaseURL     string  `yaml:"base_url"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embeddings struct {
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embeddings"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Retrieval struct {
		TopK    int `yaml:"top_k"`
		MaxTopK int `yaml:"max_top_k"`
	} `yaml:"retrieval"`

	Upload struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"upload"`

	Scraper struct {
		MaxDepth  int     `yaml:"max_depth"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"scraper"`

	Log struct {
		Level       string `yaml:"level"`
		Environment string `yaml:"environment"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/quill/config.yaml"),
			"/etc/quill/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 10
	}
	if config.Server.RateBurst == 0 {
		config.Server.RateBurst = 20
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-3.5-turbo"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.Provider == "ollama" && config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embeddings.Model == "" {
		if config.LLM.Provider == "ollama" {
			config.Embeddings.Model = "nomic-embed-text:latest"
		} else {
			config.Embeddings.Model = "text-embedding-3-small"
		}
	}
	if config.Embeddings.BatchSize == 0 {
		config.Embeddings.BatchSize = 100
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "pdf_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.MaxTopK == 0 {
		config.Retrieval.MaxTopK = 20
	}

	if config.Upload.MaxFileSizeMB == 0 {
		config.Upload.MaxFileSizeMB = 10
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Environment == "" {
		config.Log.Environment = "development"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embeddings.Model = model
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if size := os.Getenv("CHUNK_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.Processor.ChunkSize = n
		}
	}
	if overlap := os.Getenv("CHUNK_OVERLAP"); overlap != "" {
		if n, err := strconv.Atoi(overlap); err == nil {
			config.Processor.ChunkOverlap = n
		}
	}
	if topK := os.Getenv("TOP_K_RESULTS"); topK != "" {
		if n, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.TopK = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
