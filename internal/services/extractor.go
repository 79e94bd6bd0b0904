package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"
)

// DocumentExtractor is the default Extractor. It sniffs the payload: PDF
// documents go through the pdf reader page by page, anything else is treated
// as plain text on a single page.
type DocumentExtractor struct{}

var _ Extractor = (*DocumentExtractor)(nil)

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

func (e *DocumentExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("extract: empty document")
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return e.extractPDF(ctx, data)
	}
	text := strings.TrimSpace(string(data))
	return &Extraction{
		Text:  text,
		Pages: []PageText{{Number: 1, Text: text}},
	}, nil
}

func (e *DocumentExtractor) extractPDF(ctx context.Context, data []byte) (*Extraction, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var full strings.Builder
	var pages []PageText
	unreadable := 0
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			unreadable++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the whole document.
			log.WithField("page", i).Warnf("failed to extract pdf page: %v", err)
			unreadable++
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PageText{Number: i, Text: text})
		full.WriteString(text)
		full.WriteString("\n\n")
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("extract: no readable text in %d pdf pages", reader.NumPage())
	}
	extraction := &Extraction{
		Text:         strings.TrimSpace(full.String()),
		Pages:        pages,
		SkippedPages: unreadable,
	}
	if unreadable > 0 {
		log.Warnf("pdf extraction skipped %d of %d pages", unreadable, reader.NumPage())
	}
	return extraction, nil
}
