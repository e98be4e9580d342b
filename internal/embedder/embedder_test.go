package embedder

import (
	"context"
	"math"
	"os"
	"testing"
)

func TestNew_NoAPIKey(t *testing.T) {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected an error when no API key is set")
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	got, err := normalize(v)
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}

	var sumSquares float64
	for _, x := range got {
		sumSquares += float64(x) * float64(x)
	}
	if math.Abs(sumSquares-1.0) > 1e-6 {
		t.Errorf("normalize produced non-unit vector, sum of squares = %v", sumSquares)
	}
	if got[0] != float32(0.6) || got[1] != float32(0.8) {
		t.Errorf("normalize([3,4]) = %v, want [0.6, 0.8]", got)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	if _, err := normalize([]float32{0, 0, 0}); err == nil {
		t.Error("normalize of a zero-magnitude vector should fail")
	}
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	e := &Embedder{}
	out, err := e.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedTexts(nil) returned error: %v", err)
	}
	if out != nil {
		t.Errorf("EmbedTexts(nil) = %v, want nil", out)
	}
}

// TestLiveAPIIntegration exercises EmbedQuery and EmbedTexts against the
// real Gemini API. It only runs when a usable API key is present in the
// environment.
func TestLiveAPIIntegration(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set, skipping live API integration test")
	}

	e, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	query, err := e.EmbedQuery(context.Background(), "persistent homology of point clouds")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	if len(query) != int(Dimensions) {
		t.Errorf("len(query) = %d, want %d", len(query), Dimensions)
	}

	docs, err := e.EmbedTexts(context.Background(), []string{"a paragraph about topology", "a paragraph about graphs"})
	if err != nil {
		t.Fatalf("EmbedTexts failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
}
