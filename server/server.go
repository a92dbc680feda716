package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmorr/quill/internal/types"
)

const maxQuestionLength = 1000

type Config struct {
	Version       string
	MaxUploadMB   int
	DefaultTopK   int
	MaxTopK       int
	RateLimit     float64 // requests per second, 0 disables limiting
	RateBurst     int
	ScrapeMaxHops int
}

// Server is the HTTP front of the ingestion and retrieval services.
type Server struct {
	config    Config
	ingestion types.IngestionService
	retrieval types.RetrievalService
	log       *zap.Logger
}

func New(config Config, ingestion types.IngestionService, retrieval types.RetrievalService, log *zap.Logger) *Server {
	if config.Version == "" {
		config.Version = "1.0.0"
	}
	if config.MaxUploadMB == 0 {
		config.MaxUploadMB = 10
	}
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	if config.MaxTopK == 0 {
		config.MaxTopK = 20
	}
	if config.RateBurst == 0 {
		config.RateBurst = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		config:    config,
		ingestion: ingestion,
		retrieval: retrieval,
		log:       log,
	}
}

// Handler builds the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("POST /api/v1/ingest-url", s.handleIngestURL)
	mux.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	var handler http.Handler = mux
	handler = s.withCORS(handler)
	if s.config.RateLimit > 0 {
		handler = s.withRateLimit(handler)
	}
	handler = s.withLogging(handler)
	return handler
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PDF Chatbot API",
		"version": s.config.Version,
		"health":  "/api/v1/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.ingestion.ChunkCount(r.Context())
	if err != nil {
		s.log.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Service unhealthy")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"vector_store_count": count,
		"version":            s.config.Version,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size: %dMB", s.config.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	// unipdf needs a ReadSeeker, so buffer the upload.
	content, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size: %dMB", s.config.MaxUploadMB))
			return
		}
		s.log.Error("failed to read upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	result, err := s.ingestion.IngestPDF(r.Context(), bytes.NewReader(content), header.Filename)
	if err != nil {
		s.log.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process PDF: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": result.DocumentID,
		"filename":    result.Filename,
		"num_pages":   result.NumPages,
		"num_chunks":  result.NumChunks,
		"message":     "Document uploaded and processed successfully",
	})
}

type queryRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if msg := validateQuery(req, s.config.MaxTopK); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	result, err := s.retrieval.Query(r.Context(), req.Question, req.TopK, req.DocumentID)
	if err != nil {
		s.log.Error("query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Query processing failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func validateQuery(req queryRequest, maxTopK int) string {
	if strings.TrimSpace(req.Question) == "" {
		return "question must not be empty"
	}
	if len(req.Question) > maxQuestionLength {
		return fmt.Sprintf("question must be at most %d characters", maxQuestionLength)
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		return fmt.Sprintf("top_k must be between 1 and %d", maxTopK)
	}
	return ""
}

type ingestURLRequest struct {
	URL      string `json:"url"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusUnprocessableEntity, "url must start with http:// or https://")
		return
	}
	if req.MaxDepth < 0 || (s.config.ScrapeMaxHops > 0 && req.MaxDepth > s.config.ScrapeMaxHops) {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("max_depth must be between 0 and %d", s.config.ScrapeMaxHops))
		return
	}

	result, err := s.ingestion.IngestURL(r.Context(), req.URL, req.MaxDepth)
	if err != nil {
		s.log.Error("url ingestion failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to ingest URL: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": result.DocumentID,
		"filename":    result.Filename,
		"num_pages":   result.NumPages,
		"num_chunks":  result.NumChunks,
		"message":     "URL scraped and processed successfully",
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ingestion.ListDocuments(r.Context())
	if err != nil {
		s.log.Error("list documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list documents: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents":   docs,
		"total_count": len(docs),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	doc, err := s.ingestion.GetDocument(r.Context(), documentID)
	if err != nil {
		s.log.Error("get document failed", zap.String("document_id", documentID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get document: %v", err))
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Document %s not found", documentID))
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	deleted, err := s.ingestion.DeleteDocument(r.Context(), documentID)
	if err != nil {
		s.log.Error("delete failed", zap.String("document_id", documentID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete document: %v", err))
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Document %s not found", documentID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": documentID,
		"message":     fmt.Sprintf("Document %s deleted successfully", documentID),
		"success":     true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
