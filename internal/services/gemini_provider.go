package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"lexpipe/internal/models"
)

// GeminiProvider implements GenerationProvider using the Google Gemini API.
// It is the alternate generation backend; embeddings stay on OpenAI so the
// index dimension is stable regardless of which generator is configured.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ GenerationProvider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key not provided")
	}
	if modelName == "" {
		modelName = "models/gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Infof("Gemini provider initialized with model %s", modelName)
	return &GeminiProvider{client: client, model: modelName}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, query string, chunks []models.ScoredChunk) (string, float64, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(answerSystemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(BuildAnswerPrompt(query, chunks)))
	if err != nil {
		return "", 0, fmt.Errorf("Gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", 0, fmt.Errorf("Gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", 0, fmt.Errorf("Gemini returned an empty answer")
	}
	return answer, EvidenceConfidence(chunks), nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
