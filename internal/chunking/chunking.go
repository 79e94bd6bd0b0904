package chunking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"lexpipe/internal/models"
	"lexpipe/internal/services"
)

const (
	// DefaultMaxTokens defines a reasonable default chunk budget if not provided.
	DefaultMaxTokens = 200
	// DefaultOverlap defines a reasonable default overlap if not provided.
	DefaultOverlap = 40
)

// Chunker splits extracted document text into retrieval-sized chunks along
// sentence boundaries, keeping page numbers so citations can point back at
// the right page. Chunk ids are deterministic over (document, index) so a
// re-run of the index stage upserts the same rows.
type Chunker struct {
	MaxTokens int
	Overlap   int

	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewChunker(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = DefaultOverlap
	}
	tokenizer, err := english.NewSentenceTokenizer(nil) // default locale
	if err != nil {
		// The English training data is embedded in the library; loading it
		// cannot fail at runtime.
		panic(err)
	}
	return &Chunker{
		MaxTokens: maxTokens,
		Overlap:   overlap,
		tokenizer: tokenizer,
	}
}

// Chunk splits the pages of an extraction into overlapping chunks.
func (c *Chunker) Chunk(documentID string, extraction *services.Extraction) []models.Chunk {
	var chunks []models.Chunk
	index := 0
	for _, page := range extraction.Pages {
		for _, text := range c.splitText(page.Text) {
			chunks = append(chunks, models.Chunk{
				ChunkID:    chunkID(documentID, index),
				DocumentID: documentID,
				Index:      index,
				PageNumber: page.Number,
				Text:       text,
			})
			index++
		}
	}
	return chunks
}

// splitText accumulates sentences until the token budget is reached, then
// starts the next chunk seeded with the overlap tail of the previous one.
func (c *Chunker) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sents := c.tokenizer.Tokenize(text)
	if len(sents) == 0 {
		return []string{text}
	}

	var out []string
	var current []string
	tokens := 0
	for _, s := range sents {
		sentence := strings.TrimSpace(s.Text)
		if sentence == "" {
			continue
		}
		n := estimateTokens(sentence)
		if tokens+n > c.MaxTokens && len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current, tokens = c.overlapTail(current)
		}
		current = append(current, sentence)
		tokens += n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// overlapTail returns the sentences at the end of a finished chunk that
// approximate the configured token overlap.
func (c *Chunker) overlapTail(chunk []string) ([]string, int) {
	if c.Overlap <= 0 {
		return nil, 0
	}
	var tail []string
	tokens := 0
	for i := len(chunk) - 1; i >= 0; i-- {
		n := estimateTokens(chunk[i])
		if tokens+n > c.Overlap && len(tail) > 0 {
			break
		}
		tail = append([]string{chunk[i]}, tail...)
		tokens += n
		if tokens >= c.Overlap {
			break
		}
	}
	return tail, tokens
}

// estimateTokens approximates token count by whitespace-separated words.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

// chunkID derives a stable chunk id from document id and chunk index.
func chunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", documentID, index))).String()
}
