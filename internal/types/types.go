package types

import (
	"context"
	"io"

	"github.com/jmorr/quill/internal/models"
)

// Core interfaces

// Extractor pulls page-keyed text out of a PDF.
type Extractor interface {
	Extract(r io.ReadSeeker) (*models.Extracted, error)
}

// Splitter turns pages into embeddable chunks.
type Splitter interface {
	SplitPages(pages []models.Page) ([]models.Chunk, error)
}

// Embedder talks to the embeddings API.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel generates a grounded answer from retrieved chunks.
type ChatModel interface {
	Answer(ctx context.Context, question string, chunks []models.ScoredChunk) (*models.Answer, error)
	AnswerStream(ctx context.Context, question string, chunks []models.ScoredChunk, fn func(chunk string) error) (*models.Answer, error)
}

// VectorStore persists chunks and serves similarity search.
type VectorStore interface {
	Store(ctx context.Context, doc models.Document, chunks []models.Chunk) error
	Search(ctx context.Context, embedding []float32, limit int, documentID string) ([]models.ScoredChunk, error)
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)
	GetDocument(ctx context.Context, documentID string) (*models.DocumentInfo, error)
	Count(ctx context.Context) (int64, error)
	Close()
}

// Service interfaces consumed by the HTTP layer.

type IngestionService interface {
	IngestPDF(ctx context.Context, r io.ReadSeeker, filename string) (*models.IngestResult, error)
	IngestURL(ctx context.Context, rawURL string, maxDepth int) (*models.IngestResult, error)
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)
	GetDocument(ctx context.Context, documentID string) (*models.DocumentInfo, error)
	ChunkCount(ctx context.Context) (int64, error)
}

type RetrievalService interface {
	Query(ctx context.Context, question string, topK int, documentID string) (*models.QueryResult, error)
	QueryStream(ctx context.Context, question string, topK int, documentID string, fn func(chunk string) error) (*models.QueryResult, error)
}
