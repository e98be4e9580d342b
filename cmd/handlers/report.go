package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"bib/internal/config"
	"bib/internal/embedder"
	"bib/internal/llm"
	"bib/internal/report"
	"bib/internal/retrieve"
	"bib/internal/store"
)

// Report runs a similarity search against the store and compiles a
// grounded literature-review PDF answering queryString into the current
// working directory.
func Report(ctx context.Context, queryString string) error {
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

	keys := report.RelevantKeys(result.Contexts)
	papers, err := st.GetPapers(keys, false)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(ctx)
	if err != nil {
		return err
	}
	composer := report.New(client, st)

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	path, err := composer.Generate(ctx, queryString, result.Contexts, result.Similarities, papers, cwd, time.Now().Unix())
	if err != nil {
		return err
	}

	fmt.Printf("Report saved to: %s\n", path)
	return nil
}
