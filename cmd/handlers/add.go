package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bib/internal/config"
	"bib/internal/embedder"
	"bib/internal/ingest"
	"bib/internal/store"
)

// Add ingests a single PDF file, writing a copy named "<key>.pdf" into the
// configured PDF directory once its citation key is known. If the detected
// key has already been processed, the user is asked to confirm before the
// stored paper is replaced.
func Add(ctx context.Context, pdfPath string) error {
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

	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", pdfPath, err)
	}

	ing := ingest.New(parser, emb, st)
	parsed, err := ing.Analyze(ctx, pdfBytes)
	if err != nil {
		return err
	}

	processed, err := st.IsProcessed(parsed.Key)
	if err != nil {
		return err
	}
	if processed {
		fmt.Printf("%s is already in the store. Replace it? [y/N] ", parsed.Key)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := ing.Commit(ctx, parsed); err != nil {
		return err
	}

	dest := filepath.Join(cfg.PDFDir, parsed.Key+".pdf")
	if err := os.WriteFile(dest, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", dest, err)
	}

	fmt.Printf("Ingested %s -> %s\n", pdfPath, dest)
	return nil
}
