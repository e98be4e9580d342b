package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bib/internal/config"
	"bib/internal/embedder"
	"bib/internal/llm"
	"bib/internal/rerank"
	"bib/internal/retrieve"
	"bib/internal/store"

	"golang.org/x/term"
)

// terminalWidth reports the current terminal's column width, falling back
// to 80 columns when stdout is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// Query runs a similarity search against the store and prints a ranked,
// grounded summary of which cited papers answer queryString, showing at
// most topK results.
func Query(ctx context.Context, queryString string, topK int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := embedder.New(ctx)
	if err != nil {
		return err
	}

	retriever := retrieve.New(emb, st)
	result, err := retriever.Search(ctx, queryString)
	if err != nil {
		return err
	}
	if result.Empty() {
		fmt.Println("No results found. Try a different query.")
		return nil
	}
	fmt.Printf("Found %d relevant contexts\n", len(result.Contexts))

	client, err := llm.NewClient(ctx)
	if err != nil {
		return err
	}

	reranker := rerank.New(client, st)
	contextStr := rerank.BuildContexts(result.Contexts, result.Similarities)
	ranked, err := reranker.Rank(ctx, queryString, contextStr)
	if err != nil {
		return err
	}

	var b strings.Builder
	rerank.Render(&b, ranked, topK, terminalWidth())
	fmt.Print(b.String())
	return nil
}
