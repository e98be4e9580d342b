// Package llm constructs the shared Gemini client used by the reranking
// and report-generation passes, resolving the API key the same way
// internal/embedder does.
package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// NewClient creates a Gemini client using an API key resolved from
// GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, or GOOGLE_AI_API_KEY, in that
// order, the same precedence internal/embedder.New uses.
func NewClient(ctx context.Context) (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_AI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, or GOOGLE_AI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}
