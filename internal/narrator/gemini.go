// internal/narrator/gemini.go
package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jason-s-yu/stranded/internal/errors"
)

// GeminiCompleter calls a Gemini model through the generative-ai-go client.
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiCompleter(ctx context.Context, apiKey, modelName string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.9)
	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return sb.String(), nil
}

func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

// OfflineCompleter is used when no API key is configured. Every call fails,
// so callers always land on their fallback.
type OfflineCompleter struct{}

func (OfflineCompleter) Complete(context.Context, string) (string, error) {
	return "", errors.Unavailable("no generation backend configured")
}
