package translate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// GeminiTranslator implements the Translator interface using Google's Gemini
// API.
type GeminiTranslator struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGeminiTranslator creates a translator backed by Gemini. It requires the
// GEMINI_API_KEY environment variable.
func NewGeminiTranslator(logger *zap.Logger) (*GeminiTranslator, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTranslator{
		client: client,
		logger: logger,
		model:  defaultModel,
	}, nil
}

// Translate converts text into targetLanguage, returning the translation
// alone with no commentary.
func (g *GeminiTranslator) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following transcript into %s. Reply with the translation only, no explanations.\n\n%s",
		targetLanguage, text)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate translation: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no translation generated")
	}

	var translated string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			translated += part.Text
		}
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", fmt.Errorf("empty translation generated")
	}

	g.logger.Debug("Translated transcript",
		zap.String("targetLanguage", targetLanguage),
		zap.Int("inputLength", len(text)),
		zap.Int("outputLength", len(translated)))

	return translated, nil
}
