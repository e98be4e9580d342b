package handlers

import (
	"context"
	"fmt"

	"bib/internal/config"
	"bib/internal/embedder"
	"bib/internal/ingest"
	"bib/internal/store"
)

// Sync reconciles the configured PDF directory against the store: new
// files are parsed and ingested, already-processed files are skipped, and
// duplicates are removed or renamed to their canonical key.
func Sync(ctx context.Context) error {
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

	parser := ingest.NewGrobidClient(ingest.DefaultGrobidURL)
	if err := ingest.EnsureGrobidReady(ctx, parser); err != nil {
		return err
	}

	ing := ingest.New(parser, emb, st)
	result, err := ing.Sync(ctx, cfg.PDFDir)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested: %d, Skipped: %d, Renamed: %d, Removed: %d\n",
		len(result.Ingested), len(result.Skipped), len(result.Renamed), len(result.Removed))
	for name, ferr := range result.Failed {
		fmt.Printf("Failed: %s: %v\n", name, ferr)
	}
	return nil
}
