package processor

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/jmorr/quill/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Processor splits page text into overlapping chunks, keeping page
// provenance on every chunk so answers can cite page numbers.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if len(config.Separators) == 0 {
		// Paragraphs first, then lines, then sentences, then words.
		config.Separators = []string{"\n\n", "\n", ". ", " ", ""}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators(config.Separators),
	)

	return Processor{
		config:   config,
		splitter: splitter,
	}
}

// SplitPages chunks each page independently. Chunk indexes run globally
// across the document; PageIndex restarts per page.
func (p *Processor) SplitPages(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	globalIndex := 0

	for _, page := range pages {
		parts, err := p.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}

		for localIndex, text := range parts {
			if text == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:       text,
				PageNumber: page.Number,
				Index:      globalIndex,
				PageIndex:  localIndex,
				Length:     len(text),
			})
			globalIndex++
		}
	}

	return chunks, nil
}
