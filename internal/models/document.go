package models

import "time"

// Document is the per-upload metadata carried alongside its chunks.
type Document struct {
	ID       string
	Filename string
	Title    string
	Author   string
	Source   string
	NumPages int
	Metadata map[string]interface{}
}

// Page holds the cleaned text of a single PDF page (or one scraped web page).
type Page struct {
	Number int
	Text   string
}

// Extracted is the result of pulling text out of a source document.
// Pages that end up empty after cleaning are dropped, so len(Pages)
// may be smaller than NumPages.
type Extracted struct {
	Pages    []Page
	Title    string
	Author   string
	NumPages int
}

// Chunk is one embeddable slice of a document.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	PageNumber int
	Index      int // position within the whole document
	PageIndex  int // position within its page
	Length     int
	Embedding  []float32
}

// ScoredChunk is a chunk returned from similarity search together with
// its cosine distance (lower is better).
type ScoredChunk struct {
	Chunk
	Distance float64
}

// DocumentInfo is the aggregate view of a stored document.
type DocumentInfo struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	Author     string    `json:"author,omitempty"`
	NumPages   int       `json:"num_pages"`
	NumChunks  int       `json:"num_chunks"`
	UploadedAt time.Time `json:"upload_timestamp"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	NumPages   int    `json:"num_pages"`
	NumChunks  int    `json:"num_chunks"`
}

// Answer is a completion API response with usage accounting.
type Answer struct {
	Text       string
	Model      string
	TokensUsed int
}

// Source is a cited chunk attached to a query answer.
type Source struct {
	Text           string  `json:"text"`
	PageNumber     int     `json:"page_number"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QueryResult is the full answer to a question, with citations.
type QueryResult struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	DocumentIDs []string `json:"document_ids"`
	ModelUsed   string   `json:"model_used"`
	TokensUsed  int      `json:"tokens_used"`
}
