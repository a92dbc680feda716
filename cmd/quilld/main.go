package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jmorr/quill/pkg/config"
	"github.com/jmorr/quill/pkg/ingest"
	"github.com/jmorr/quill/pkg/llm"
	"github.com/jmorr/quill/pkg/logger"
	"github.com/jmorr/quill/pkg/pdf"
	"github.com/jmorr/quill/pkg/processor"
	"github.com/jmorr/quill/pkg/retrieval"
	"github.com/jmorr/quill/pkg/scraper"
	"github.com/jmorr/quill/pkg/store"
	"github.com/jmorr/quill/server"
)

const version = "1.0.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	// .env is optional; env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting PDF chatbot API",
		zap.String("version", version),
		zap.String("environment", cfg.Log.Environment),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding_model", cfg.Embeddings.Model),
	)

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		BatchSize:   cfg.Database.BatchSize,
		SearchLimit: cfg.Retrieval.TopK,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	extractor := pdf.New()
	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})

	ingestion := ingest.NewService(extractor, &splitter, embedder, vectorStore, scraper.ScraperConfig{
		MaxDepth:  cfg.Scraper.MaxDepth,
		RateLimit: cfg.Scraper.RateLimit,
	}, log)

	retrievalSvc := retrieval.NewService(embedder, vectorStore, chatEngine,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK, cfg.LLM.Model, log)

	srv := server.New(server.Config{
		Version:       version,
		MaxUploadMB:   cfg.Upload.MaxFileSizeMB,
		DefaultTopK:   cfg.Retrieval.TopK,
		MaxTopK:       cfg.Retrieval.MaxTopK,
		RateLimit:     cfg.Server.RateLimit,
		RateBurst:     cfg.Server.RateBurst,
		ScrapeMaxHops: cfg.Scraper.MaxDepth,
	}, ingestion, retrievalSvc, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
