package pdf

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/jmorr/quill/internal/models"
)

// Extractor pulls page-keyed text and document metadata out of a PDF.
type Extractor struct{}

func New() Extractor {
	return Extractor{}
}

func (Extractor) Extract(r io.ReadSeeker) (*models.Extracted, error) {
	reader, err := model.NewPdfReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	result := &models.Extracted{NumPages: numPages}

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page, err := reader.GetPage(pageNum)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d: %w", pageNum, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("failed to build extractor for page %d: %w", pageNum, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
		}

		cleaned := CleanText(text)
		if cleaned == "" {
			continue
		}

		result.Pages = append(result.Pages, models.Page{
			Number: pageNum,
			Text:   cleaned,
		})
	}

	if info, err := reader.GetPdfInfo(); err == nil && info != nil {
		if info.Title != nil {
			result.Title = CleanText(info.Title.Decoded())
		}
		if info.Author != nil {
			result.Author = CleanText(info.Author.Decoded())
		}
	}

	return result, nil
}

// CleanText strips NUL bytes, replacement runes and invalid UTF-8, then
// collapses all whitespace runs to single spaces.
func CleanText(text string) string {
	text = sanitizeUTF8(text)
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "�", "")
	return strings.Join(strings.Fields(text), " ")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
