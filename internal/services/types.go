package services

import (
	"context"

	"lexpipe/internal/models"
)

// --- Extraction capability ---

// PageText is the extracted text of one page, in document order.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Extraction is the output of the extraction capability: the full text plus
// the per-page layout the chunker uses to keep page numbers on citations.
type Extraction struct {
	Text  string     `json:"text"`
	Pages []PageText `json:"pages"`
	// SkippedPages counts pages the extractor could not read; nonzero means
	// the extraction is usable but partial.
	SkippedPages int `json:"skipped_pages,omitempty"`
}

// Extractor turns raw document bytes into text with layout.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// --- Embedding capability ---

// EmbeddingProvider turns text chunks into vectors. Implementations return
// one vector per input text, in order.
type EmbeddingProvider interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// --- Generation capability ---

// GenerationProvider produces a grounded answer from retrieved chunks along
// with a confidence estimate in [0, 1].
type GenerationProvider interface {
	Name() string
	Generate(ctx context.Context, query string, chunks []models.ScoredChunk) (answer string, confidence float64, err error)
}
