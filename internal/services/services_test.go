package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpipe/internal/models"
)

func TestExtractPlainTextSinglePage(t *testing.T) {
	e := NewDocumentExtractor()

	extraction, err := e.Extract(context.Background(), []byte("  This contract is governed by Dutch law.\n"))
	require.NoError(t, err)

	assert.Equal(t, "This contract is governed by Dutch law.", extraction.Text)
	require.Len(t, extraction.Pages, 1)
	assert.Equal(t, 1, extraction.Pages[0].Number)
	assert.Zero(t, extraction.SkippedPages)
}

func TestExtractEmptyDocumentFails(t *testing.T) {
	e := NewDocumentExtractor()
	_, err := e.Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestExtractBrokenPDFFails(t *testing.T) {
	e := NewDocumentExtractor()
	// The %PDF prefix routes into the pdf reader, which must reject garbage.
	_, err := e.Extract(context.Background(), []byte("%PDF-1.7 definitely not a pdf"))
	assert.Error(t, err)
}

func TestBuildAnswerPromptNumbersEvidence(t *testing.T) {
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{DocumentID: "doc-1", PageNumber: 2, Text: "The term is five years."}, Score: 0.9},
		{Chunk: models.Chunk{DocumentID: "doc-2", PageNumber: 7, Text: "Notice must be written."}, Score: 0.7},
	}

	prompt := BuildAnswerPrompt("How long is the term?", chunks)

	assert.Contains(t, prompt, "How long is the term?")
	assert.Contains(t, prompt, "[1]")
	assert.Contains(t, prompt, "[2]")
	assert.Contains(t, prompt, "The term is five years.")
	assert.Contains(t, prompt, "Notice must be written.")
}

func TestEvidenceConfidence(t *testing.T) {
	assert.Zero(t, EvidenceConfidence(nil))

	chunks := []models.ScoredChunk{{Score: 0.8}, {Score: 0.6}}
	assert.InDelta(t, 0.7, EvidenceConfidence(chunks), 1e-9)

	// Scores above 1 clamp rather than overflow the [0, 1] contract.
	hot := []models.ScoredChunk{{Score: 1.8}, {Score: 1.4}}
	assert.Equal(t, 1.0, EvidenceConfidence(hot))
}
