// Package embedder wraps Gemini's embedding endpoint behind the two
// operations the rest of the system needs: embedding a single query string
// and embedding a batch of paragraph texts. Every vector it returns is
// L2-normalized, so downstream similarity scoring can use a plain dot
// product instead of full cosine similarity.
package embedder

import (
	"context"
	"fmt"
	"math"
	"os"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini embedding model used for both queries and
	// documents.
	DefaultModel = "gemini-embedding-001"
	// Dimensions is the output dimensionality requested via Matryoshka
	// truncation, matching the dimension the store persists.
	Dimensions = int32(768)
	// BatchSize is the maximum number of texts embedded in a single
	// EmbedContent call.
	BatchSize = 100
)

// Embedder generates normalized embedding vectors via the Gemini API.
type Embedder struct {
	client *genai.Client
	model  string
}

// New creates an Embedder using an API key resolved from GEMINI_API_KEY,
// GOOGLE_GEMINI_API_KEY, or GOOGLE_AI_API_KEY, in that order.
func New(ctx context.Context) (*Embedder, error) {
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

	return &Embedder{client: client, model: DefaultModel}, nil
}

// EmbedQuery embeds a single search query, tagged with the RETRIEVAL_QUERY
// task type so the model favors recall against stored documents.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of paragraph texts, tagged with the
// RETRIEVAL_DOCUMENT task type, chunking the request into groups of
// BatchSize texts per call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += BatchSize {
		end := start + BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end], "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d): %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: t}},
			Role:  "user",
		}
	}

	dims := Dimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
		TaskType:             taskType,
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("EmbedContent: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("EmbedContent returned a nil response")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("EmbedContent returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("EmbedContent returned a nil embedding at index %d", i)
		}
		if len(emb.Values) != int(Dimensions) {
			return nil, fmt.Errorf("EmbedContent returned a %d-dimensional vector, want %d", len(emb.Values), Dimensions)
		}
		normalized, err := normalize(emb.Values)
		if err != nil {
			return nil, fmt.Errorf("normalizing embedding at index %d: %w", i, err)
		}
		out[i] = normalized
	}
	return out, nil
}

// normalize scales v to unit L2 norm. A zero-magnitude vector cannot be
// normalized and is a fatal error for the call that produced it.
func normalize(v []float32) ([]float32, error) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return nil, fmt.Errorf("embedding vector has zero magnitude")
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}
