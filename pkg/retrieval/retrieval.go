package retrieval

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jmorr/quill/internal/models"
	"github.com/jmorr/quill/internal/types"
)

// NoResultsAnswer is returned when retrieval finds nothing; the LLM is
// not called in that case.
const NoResultsAnswer = "I couldn't find any relevant information to answer your question."

const maxSourceLength = 500

// Service answers questions against the stored chunks.
type Service struct {
	embedder    types.Embedder
	store       types.VectorStore
	chat        types.ChatModel
	defaultTopK int
	maxTopK     int
	model       string
	log         *zap.Logger
}

func NewService(embedder types.Embedder, store types.VectorStore, chat types.ChatModel, defaultTopK, maxTopK int, model string, log *zap.Logger) *Service {
	if defaultTopK == 0 {
		defaultTopK = 5
	}
	if maxTopK == 0 {
		maxTopK = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		embedder:    embedder,
		store:       store,
		chat:        chat,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		model:       model,
		log:         log,
	}
}

// Query embeds the question, retrieves the closest chunks and asks the
// LLM for a cited answer.
func (s *Service) Query(ctx context.Context, question string, topK int, documentID string) (*models.QueryResult, error) {
	return s.query(ctx, question, topK, documentID, nil)
}

// QueryStream is Query with the answer tokens forwarded to fn as they
// arrive.
func (s *Service) QueryStream(ctx context.Context, question string, topK int, documentID string, fn func(chunk string) error) (*models.QueryResult, error) {
	return s.query(ctx, question, topK, documentID, fn)
}

func (s *Service) query(ctx context.Context, question string, topK int, documentID string, fn func(chunk string) error) (*models.QueryResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	log := s.log.With(zap.String("question", truncate(question, 50)))
	log.Info("processing query", zap.Int("top_k", topK), zap.String("document_id", documentID))

	embedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	chunks, err := s.store.Search(ctx, embedding, topK, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	if len(chunks) == 0 {
		log.Warn("no relevant chunks found")
		return &models.QueryResult{
			Answer:      NoResultsAnswer,
			Sources:     []models.Source{},
			DocumentIDs: []string{},
			ModelUsed:   s.model,
		}, nil
	}

	var answer *models.Answer
	if fn != nil {
		answer, err = s.chat.AnswerStream(ctx, question, chunks, fn)
	} else {
		answer, err = s.chat.Answer(ctx, question, chunks)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	log.Info("generated answer",
		zap.Int("num_sources", len(chunks)), zap.Int("tokens_used", answer.TokensUsed))

	return &models.QueryResult{
		Answer:      answer.Text,
		Sources:     FormatSources(chunks),
		DocumentIDs: documentIDs(chunks),
		ModelUsed:   answer.Model,
		TokensUsed:  answer.TokensUsed,
	}, nil
}

// FormatSources turns retrieved chunks into citation entries. Long chunk
// texts are truncated; distances are rounded to three decimal places.
func FormatSources(chunks []models.ScoredChunk) []models.Source {
	sources := make([]models.Source, len(chunks))
	for i, chunk := range chunks {
		text := chunk.Text
		if len(text) > maxSourceLength {
			cut := maxSourceLength
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		sources[i] = models.Source{
			Text:           text,
			PageNumber:     chunk.PageNumber,
			ChunkIndex:     chunk.Index,
			RelevanceScore: math.Round(chunk.Distance*1000) / 1000,
		}
	}
	return sources
}

func documentIDs(chunks []models.ScoredChunk) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, chunk := range chunks {
		if chunk.DocumentID != "" && !seen[chunk.DocumentID] {
			seen[chunk.DocumentID] = true
			ids = append(ids, chunk.DocumentID)
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
