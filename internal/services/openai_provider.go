package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
)

// OpenAIProvider implements EmbeddingProvider and GenerationProvider on top
// of the OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	embedModel openai.EmbeddingModel
	chatModel  string
	dim        int
}

var (
	_ EmbeddingProvider  = (*OpenAIProvider)(nil)
	_ GenerationProvider = (*OpenAIProvider)(nil)
)

func NewOpenAIProvider(apiKey, embedModel, chatModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}

	var dim int
	switch embedModel {
	case string(openai.AdaEmbeddingV2), "text-embedding-3-small":
		dim = 1536
	case "text-embedding-3-large":
		dim = 3072
	default:
		log.Warnf("unknown OpenAI embedding model %q, defaulting dimension to 1536", embedModel)
		dim = 1536
	}
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	log.Infof("OpenAI provider initialized (embed=%s dim=%d chat=%s)", embedModel, dim, chatModel)
	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		embedModel: openai.EmbeddingModel(embedModel),
		chatModel:  chatModel,
		dim:        dim,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Dimension() int { return p.dim }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.embedModel,
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("OpenAI embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

const answerSystemPrompt = `You are a legal research assistant. Answer the question strictly from the
provided excerpts. Cite excerpts by their number like [1]. If the excerpts do
not contain the answer, say so plainly instead of guessing.`

func (p *OpenAIProvider) Generate(ctx context.Context, query string, chunks []models.ScoredChunk) (string, float64, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildAnswerPrompt(query, chunks)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", 0, fmt.Errorf("OpenAI chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("OpenAI chat completion returned no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	return answer, EvidenceConfidence(chunks), nil
}

// BuildAnswerPrompt renders the retrieved excerpts into the grounding block
// shared by all generation providers.
func BuildAnswerPrompt(query string, chunks []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Excerpts:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] (document %s, page %d) %s\n\n", i+1, c.DocumentID, c.PageNumber, c.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// EvidenceConfidence estimates answer confidence from retrieval scores: the
// mean similarity of the grounding chunks, which is 0 when nothing was
// retrieved.
func EvidenceConfidence(chunks []models.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range chunks {
		total += c.Score
	}
	confidence := total / float64(len(chunks))
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
