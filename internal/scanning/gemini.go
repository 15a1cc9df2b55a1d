package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Recognizer interface using Google Gemini
type Gemini struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	maxPages int
}

// NewGemini creates a new Gemini Recognizer instance
func NewGemini(apiKey string, modelName string, maxPages int) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client:   client,
		model:    model,
		maxPages: maxPages,
	}, nil
}

// Recognize transcribes every page of the document and joins the pages with a blank line
func (g *Gemini) Recognize(ctx context.Context, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pages, err := preparePages(data, contentType, g.maxPages)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		// genai.ImageData expects the format suffix ("png"), not the full MIME type
		resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", page), genai.Text(transcribePrompt))
		if err != nil {
			return "", fmt.Errorf("generating content for page %d: %w", i+1, err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("no response from gemini for page %d", i+1)
		}

		var pageText strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				pageText.WriteString(string(text))
			}
		}
		texts = append(texts, cleanTranscript(pageText.String()))
	}

	return strings.Join(texts, "\n\n"), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
