package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/jmorr/quill/internal/models"
	"github.com/jmorr/quill/pkg/config"
	"github.com/jmorr/quill/pkg/ingest"
	"github.com/jmorr/quill/pkg/llm"
	"github.com/jmorr/quill/pkg/pdf"
	"github.com/jmorr/quill/pkg/processor"
	"github.com/jmorr/quill/pkg/retrieval"
	"github.com/jmorr/quill/pkg/scraper"
	"github.com/jmorr/quill/pkg/store"
)

type options struct {
	configPath string
	filePath   string
	docsURL    string
	chat       bool
	topK       int
}

func main() {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.filePath, "file", "", "PDF file to ingest")
	flag.StringVar(&opts.docsURL, "url", "", "Documentation URL to ingest")
	flag.BoolVar(&opts.chat, "chat", true, "Start an interactive question loop after ingestion")
	flag.IntVar(&opts.topK, "top-k", 0, "Number of chunks to retrieve per question")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	ctx := context.Background()

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

	if opts.filePath != "" {
		if err := ingestFile(ctx, cfg, embedder, vectorStore, opts.filePath); err != nil {
			return err
		}
	}

	if opts.docsURL != "" {
		if err := ingestURL(ctx, cfg, embedder, vectorStore, opts.docsURL); err != nil {
			return err
		}
	}

	if !opts.chat {
		return nil
	}

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

	retrievalSvc := retrieval.NewService(embedder, vectorStore, chatEngine,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK, cfg.LLM.Model, nil)

	return chatLoop(ctx, retrievalSvc, opts.topK)
}

func ingestFile(ctx context.Context, cfg *config.Config, embedder *llm.Embedder, vectorStore *store.VectorStore, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	color.Blue("\nIngesting %s\n", filePath)

	extractBar := getSpinner(" Extracting text...")
	extracted, err := pdf.New().Extract(f)
	extractBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}
	color.Green("✓ Extracted %d pages (%d with text)\n", extracted.NumPages, len(extracted.Pages))

	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	chunks, err := splitter.SplitPages(extracted.Pages)
	if err != nil {
		return fmt.Errorf("failed to chunk text: %w", err)
	}
	color.Green("✓ Split into %d chunks\n", len(chunks))

	doc := models.Document{
		ID:       ingest.NewDocumentID(),
		Filename: filePath,
		Title:    extracted.Title,
		Author:   extracted.Author,
		Source:   "cli",
		NumPages: extracted.NumPages,
	}

	if err := embedAndStore(ctx, cfg, embedder, vectorStore, doc, chunks); err != nil {
		return err
	}

	color.Green("✓ Stored document %s\n", doc.ID)
	return nil
}

func ingestURL(ctx context.Context, cfg *config.Config, embedder *llm.Embedder, vectorStore *store.VectorStore, docsURL string) error {
	color.Blue("\nScraping %s\n", docsURL)

	scrapeBar := getProgressBar(-1, " Scraping pages...")
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:   docsURL,
		MaxDepth:  cfg.Scraper.MaxDepth,
		RateLimit: cfg.Scraper.RateLimit,
		OnProgress: func(string) {
			scrapeBar.Add(1)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	scraped, err := s.Scrape(ctx, docsURL)
	scrapeBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to scrape URL: %w", err)
	}
	color.Green("✓ Scraped %d pages\n", len(scraped))

	pages := make([]models.Page, 0, len(scraped))
	for i, page := range scraped {
		if cleaned := pdf.CleanText(page.Content); cleaned != "" {
			pages = append(pages, models.Page{Number: i + 1, Text: cleaned})
		}
	}

	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	chunks, err := splitter.SplitPages(pages)
	if err != nil {
		return fmt.Errorf("failed to chunk text: %w", err)
	}
	color.Green("✓ Split into %d chunks\n", len(chunks))

	doc := models.Document{
		ID:       ingest.NewDocumentID(),
		Filename: docsURL,
		Title:    scraped[0].Title,
		Source:   docsURL,
		NumPages: len(scraped),
	}

	if err := embedAndStore(ctx, cfg, embedder, vectorStore, doc, chunks); err != nil {
		return err
	}

	color.Green("✓ Stored document %s\n", doc.ID)
	return nil
}

func embedAndStore(ctx context.Context, cfg *config.Config, embedder *llm.Embedder, vectorStore *store.VectorStore, doc models.Document, chunks []models.Chunk) error {
	embedBar := getProgressBar(len(chunks), " Generating embeddings...")

	batchSize := cfg.Embeddings.BatchSize
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}

		embeddings, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			embedBar.Finish()
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		for i := start; i < end; i++ {
			chunks[i].DocumentID = doc.ID
			chunks[i].Embedding = embeddings[i-start]
		}
		embedBar.Add(end - start)
	}
	embedBar.Finish()

	storeBar := getSpinner(" Storing in vector database...")
	err := vectorStore.Store(ctx, doc, chunks)
	storeBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	return nil
}

func chatLoop(ctx context.Context, retrievalSvc *retrieval.Service, topK int) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		assistantPrompt("\nAssistant: ")
		result, err := retrievalSvc.QueryStream(ctx, question, topK, "", func(chunk string) error {
			fmt.Print(chunk)
			return nil
		})
		if err != nil {
			color.Red("\nError: %v", err)
			continue
		}
		fmt.Println()

		if len(result.Sources) > 0 {
			color.Yellow("\nSources:")
			for i, src := range result.Sources {
				color.Yellow("  [%d] page %d, chunk %d (distance %.3f)",
					i+1, src.PageNumber, src.ChunkIndex, src.RelevanceScore)
			}
		}
	}

	return scanner.Err()
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
