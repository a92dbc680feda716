package retrieval_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorr/quill/internal/models"
	"github.com/jmorr/quill/pkg/retrieval"
)

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, m.err
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{1, 2, 3}, nil
}

type mockStore struct {
	chunks     []models.ScoredChunk
	gotLimit   int
	gotDocID   string
	searchErr  error
}

func (m *mockStore) Store(context.Context, models.Document, []models.Chunk) error { return nil }

func (m *mockStore) Search(_ context.Context, _ []float32, limit int, documentID string) ([]models.ScoredChunk, error) {
	m.gotLimit = limit
	m.gotDocID = documentID
	return m.chunks, m.searchErr
}

func (m *mockStore) DeleteDocument(context.Context, string) (int64, error) { return 0, nil }
func (m *mockStore) ListDocuments(context.Context) ([]models.DocumentInfo, error) {
	return nil, nil
}
func (m *mockStore) GetDocument(context.Context, string) (*models.DocumentInfo, error) {
	return nil, nil
}
func (m *mockStore) Count(context.Context) (int64, error) { return 0, nil }
func (m *mockStore) Close()                               {}

type mockChat struct {
	called bool
	answer string
}

func (m *mockChat) Answer(_ context.Context, _ string, _ []models.ScoredChunk) (*models.Answer, error) {
	m.called = true
	return &models.Answer{Text: m.answer, Model: "test-model", TokensUsed: 42}, nil
}

func (m *mockChat) AnswerStream(ctx context.Context, question string, chunks []models.ScoredChunk, fn func(string) error) (*models.Answer, error) {
	for _, part := range strings.Fields(m.answer) {
		if err := fn(part + " "); err != nil {
			return nil, err
		}
	}
	return m.Answer(ctx, question, chunks)
}

func scored(docID string, index, page int, text string, distance float64) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			DocumentID: docID,
			Index:      index,
			PageNumber: page,
			Text:       text,
		},
		Distance: distance,
	}
}

func TestQuery(t *testing.T) {
	store := &mockStore{chunks: []models.ScoredChunk{
		scored("doc-aaa", 0, 1, "First relevant chunk.", 0.12345),
		scored("doc-bbb", 3, 2, "Second relevant chunk.", 0.2),
		scored("doc-aaa", 7, 4, "Third relevant chunk.", 0.31),
	}}
	chat := &mockChat{answer: "According to Chunk 1, the answer is yes."}

	svc := retrieval.NewService(&mockEmbedder{}, store, chat, 5, 20, "test-model", nil)

	result, err := svc.Query(context.Background(), "Is it true?", 0, "")
	require.NoError(t, err)

	assert.True(t, chat.called)
	assert.Equal(t, 5, store.gotLimit) // default top_k
	assert.Equal(t, "According to Chunk 1, the answer is yes.", result.Answer)
	assert.Equal(t, "test-model", result.ModelUsed)
	assert.Equal(t, 42, result.TokensUsed)

	require.Len(t, result.Sources, 3)
	assert.Equal(t, 0.123, result.Sources[0].RelevanceScore)
	assert.Equal(t, 1, result.Sources[0].PageNumber)
	assert.Equal(t, 0, result.Sources[0].ChunkIndex)

	// Distinct document IDs in retrieval order.
	assert.Equal(t, []string{"doc-aaa", "doc-bbb"}, result.DocumentIDs)
}

func TestQueryNoResults(t *testing.T) {
	store := &mockStore{}
	chat := &mockChat{answer: "should not be used"}

	svc := retrieval.NewService(&mockEmbedder{}, store, chat, 5, 20, "test-model", nil)

	result, err := svc.Query(context.Background(), "Anything?", 5, "")
	require.NoError(t, err)

	assert.False(t, chat.called)
	assert.Equal(t, retrieval.NoResultsAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.DocumentIDs)
	assert.Equal(t, 0, result.TokensUsed)
}

func TestQueryDocumentFilterAndClamp(t *testing.T) {
	store := &mockStore{chunks: []models.ScoredChunk{scored("doc-x", 0, 1, "chunk", 0.1)}}
	svc := retrieval.NewService(&mockEmbedder{}, store, &mockChat{answer: "ok"}, 5, 20, "m", nil)

	_, err := svc.Query(context.Background(), "q", 100, "doc-x")
	require.NoError(t, err)

	assert.Equal(t, 20, store.gotLimit) // clamped to max
	assert.Equal(t, "doc-x", store.gotDocID)
}

func TestQueryEmptyQuestion(t *testing.T) {
	svc := retrieval.NewService(&mockEmbedder{}, &mockStore{}, &mockChat{}, 5, 20, "m", nil)

	_, err := svc.Query(context.Background(), "", 5, "")
	assert.Error(t, err)
}

func TestQueryEmbedError(t *testing.T) {
	svc := retrieval.NewService(&mockEmbedder{err: fmt.Errorf("boom")}, &mockStore{}, &mockChat{}, 5, 20, "m", nil)

	_, err := svc.Query(context.Background(), "q", 5, "")
	assert.Error(t, err)
}

func TestQueryStream(t *testing.T) {
	store := &mockStore{chunks: []models.ScoredChunk{scored("doc-x", 0, 1, "chunk", 0.1)}}
	svc := retrieval.NewService(&mockEmbedder{}, store, &mockChat{answer: "streamed answer"}, 5, 20, "m", nil)

	var streamed strings.Builder
	result, err := svc.QueryStream(context.Background(), "q", 5, "", func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "streamed answer", result.Answer)
	assert.Contains(t, streamed.String(), "streamed")
	assert.Contains(t, streamed.String(), "answer")
}

func TestFormatSourcesTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	sources := retrieval.FormatSources([]models.ScoredChunk{
		scored("doc-x", 2, 3, long, 0.5555),
		scored("doc-x", 3, 3, "short", 0.1),
	})

	require.Len(t, sources, 2)
	assert.Len(t, sources[0].Text, 503) // 500 chars plus ellipsis
	assert.True(t, strings.HasSuffix(sources[0].Text, "..."))
	assert.Equal(t, 0.556, sources[0].RelevanceScore)
	assert.Equal(t, "short", sources[1].Text)
}

func TestFormatSourcesTruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes, so the 500-byte limit falls inside a rune.
	long := strings.Repeat("你", 200)
	sources := retrieval.FormatSources([]models.ScoredChunk{
		scored("doc-x", 0, 1, long, 0.2),
	})

	require.Len(t, sources, 1)
	assert.True(t, utf8.ValidString(sources[0].Text))
	assert.True(t, strings.HasSuffix(sources[0].Text, "..."))
	assert.LessOrEqual(t, len(sources[0].Text), 503)
}
