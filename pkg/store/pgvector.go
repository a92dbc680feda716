package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/jmorr/quill/internal/models"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

// VectorStore keeps document chunks and their embeddings in PostgreSQL
// with pgvector, one row per chunk.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "pdf_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // text-embedding-3-small
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			title TEXT,
			author TEXT,
			num_pages INTEGER,
			page_number INTEGER,
			chunk_index INTEGER,
			page_index INTEGER,
			content TEXT,
			chunk_length INTEGER,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createDocIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_document_id_idx
		ON %s (document_id)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createDocIndex); err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}

	return nil
}

// Store writes all chunks of a document in one transaction. Chunks must
// already carry their embeddings; re-ingesting a document upserts.
func (vs *VectorStore) Store(ctx context.Context, doc models.Document, chunks []models.Chunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, filename, title, author, num_pages,
			page_number, chunk_index, page_index, content, chunk_length, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			chunk_length = EXCLUDED.chunk_length,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %d of %s has no embedding", chunk.Index, doc.ID)
		}

		id := chunk.ID
		if id == "" {
			id = fmt.Sprintf("%s_chunk_%d", doc.ID, chunk.Index)
		}

		_, err = tx.Exec(ctx, stmt,
			id,
			doc.ID,
			doc.Filename,
			doc.Title,
			doc.Author,
			doc.NumPages,
			chunk.PageNumber,
			chunk.Index,
			chunk.PageIndex,
			chunk.Text,
			chunk.Length,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Search returns the closest chunks by cosine distance, optionally
// restricted to one document.
func (vs *VectorStore) Search(ctx context.Context, embedding []float32, limit int, documentID string) ([]models.ScoredChunk, error) {
	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, page_number, chunk_index, page_index, content,
			chunk_length, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	args := []interface{}{pgvector.NewVector(embedding), limit}

	if documentID != "" {
		query = fmt.Sprintf(`
			SELECT id, document_id, page_number, chunk_index, page_index, content,
				chunk_length, embedding <=> $1 AS distance
			FROM %s
			WHERE document_id = $3
			ORDER BY embedding <=> $1
			LIMIT $2`,
			vs.config.TableName)
		args = append(args, documentID)
	}

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ScoredChunk
	for rows.Next() {
		var chunk models.ScoredChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.PageNumber,
			&chunk.Index,
			&chunk.PageIndex,
			&chunk.Text,
			&chunk.Length,
			&chunk.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// DeleteDocument removes every chunk of a document and reports how many
// rows went away.
func (vs *VectorStore) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", vs.config.TableName)

	tag, err := vs.pool.Exec(ctx, stmt, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListDocuments aggregates chunk rows into per-document summaries,
// oldest upload first.
func (vs *VectorStore) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	query := fmt.Sprintf(`
		SELECT document_id, MAX(filename), COALESCE(MAX(title), ''),
			COALESCE(MAX(author), ''), COALESCE(MAX(num_pages), 0),
			COUNT(*), MIN(created_at)
		FROM %s
		GROUP BY document_id
		ORDER BY MIN(created_at)`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentInfo
	for rows.Next() {
		var info models.DocumentInfo
		err := rows.Scan(
			&info.DocumentID,
			&info.Filename,
			&info.Title,
			&info.Author,
			&info.NumPages,
			&info.NumChunks,
			&info.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, info)
	}

	return docs, rows.Err()
}

// GetDocument returns the summary for one document, or nil when no
// chunks exist for the given ID.
func (vs *VectorStore) GetDocument(ctx context.Context, documentID string) (*models.DocumentInfo, error) {
	query := fmt.Sprintf(`
		SELECT document_id, MAX(filename), COALESCE(MAX(title), ''),
			COALESCE(MAX(author), ''), COALESCE(MAX(num_pages), 0),
			COUNT(*), MIN(created_at)
		FROM %s
		WHERE document_id = $1
		GROUP BY document_id`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var info models.DocumentInfo
	err = rows.Scan(
		&info.DocumentID,
		&info.Filename,
		&info.Title,
		&info.Author,
		&info.NumPages,
		&info.NumChunks,
		&info.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &info, nil
}

// Count reports the total number of stored chunks.
func (vs *VectorStore) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)

	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return count, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
