package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmorr/quill/internal/models"
	"github.com/jmorr/quill/internal/types"
	"github.com/jmorr/quill/pkg/pdf"
	"github.com/jmorr/quill/pkg/scraper"
)

// Service runs the ingestion pipeline: extract, chunk, embed, store.
type Service struct {
	extractor  types.Extractor
	splitter   types.Splitter
	embedder   types.Embedder
	store      types.VectorStore
	scraperCfg scraper.ScraperConfig
	log        *zap.Logger
}

func NewService(extractor types.Extractor, splitter types.Splitter, embedder types.Embedder, store types.VectorStore, scraperCfg scraper.ScraperConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		extractor:  extractor,
		splitter:   splitter,
		embedder:   embedder,
		store:      store,
		scraperCfg: scraperCfg,
		log:        log,
	}
}

// NewDocumentID returns a fresh document identifier of the form
// doc-<12 hex chars>.
func NewDocumentID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "doc-" + hex[:12]
}

// IngestPDF runs the full pipeline for one uploaded PDF. Storage is
// transactional, so a failed run leaves no partial document behind.
func (s *Service) IngestPDF(ctx context.Context, r io.ReadSeeker, filename string) (*models.IngestResult, error) {
	documentID := NewDocumentID()
	log := s.log.With(zap.String("document_id", documentID), zap.String("filename", filename))
	log.Info("starting ingestion")

	extracted, err := s.extractor.Extract(r)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	log.Info("extracted pages",
		zap.Int("num_pages", extracted.NumPages),
		zap.Int("pages_with_text", len(extracted.Pages)))

	if len(extracted.Pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", filename)
	}

	doc := models.Document{
		ID:       documentID,
		Filename: filename,
		Title:    extracted.Title,
		Author:   extracted.Author,
		Source:   "upload",
		NumPages: extracted.NumPages,
	}

	return s.ingestPages(ctx, doc, extracted.Pages, log)
}

// IngestURL scrapes a site and ingests the pages as one document. Each
// scraped page becomes a page of the document, in visit order.
func (s *Service) IngestURL(ctx context.Context, rawURL string, maxDepth int) (*models.IngestResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	cfg := s.scraperCfg
	cfg.BaseURL = rawURL
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}

	sc, err := scraper.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	scraped, err := sc.Scrape(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape URL: %w", err)
	}

	documentID := NewDocumentID()
	log := s.log.With(zap.String("document_id", documentID), zap.String("url", rawURL))
	log.Info("scraped pages", zap.Int("count", len(scraped)))

	pages := make([]models.Page, 0, len(scraped))
	for i, page := range scraped {
		cleaned := pdf.CleanText(page.Content)
		if cleaned == "" {
			continue
		}
		pages = append(pages, models.Page{Number: i + 1, Text: cleaned})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text at %s", rawURL)
	}

	doc := models.Document{
		ID:       documentID,
		Filename: path.Join(parsed.Host, parsed.Path),
		Title:    scraped[0].Title,
		Source:   rawURL,
		NumPages: len(scraped),
	}

	return s.ingestPages(ctx, doc, pages, log)
}

func (s *Service) ingestPages(ctx context.Context, doc models.Document, pages []models.Page, log *zap.Logger) (*models.IngestResult, error) {
	chunks, err := s.splitter.SplitPages(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk text: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced for %s", doc.ID)
	}
	log.Info("chunked text", zap.Int("num_chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("mismatch: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	log.Info("generated embeddings", zap.Int("count", len(embeddings)))

	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		chunks[i].Embedding = embeddings[i]
	}

	if err := s.store.Store(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	log.Info("ingestion complete")

	return &models.IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		NumPages:   doc.NumPages,
		NumChunks:  len(chunks),
	}, nil
}

// DeleteDocument removes a document; false means nothing matched.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	removed, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	s.log.Info("deleted document",
		zap.String("document_id", documentID), zap.Int64("chunks_removed", removed))
	return removed > 0, nil
}

func (s *Service) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (*models.DocumentInfo, error) {
	return s.store.GetDocument(ctx, documentID)
}

func (s *Service) ChunkCount(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
