// Package ingest orchestrates turning a PDF into rows in the citation
// store: calling the external parser, running the result through
// GrobidXmlParser, embedding every paragraph, and writing the embedded
// paper atomically. It also drives a directory-sync mode that reconciles
// a folder of PDFs against what the store has already processed.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bib/internal/core"
	"bib/internal/embedder"
	"bib/internal/grobid"
	"bib/internal/logger"
	"bib/internal/store"
)

// Ingestor wires the external parser, the embedder, and the store together.
type Ingestor struct {
	Parser   *GrobidClient
	Embedder *embedder.Embedder
	Store    *store.Store
}

// New returns an Ingestor backed by the given collaborators.
func New(parser *GrobidClient, emb *embedder.Embedder, st *store.Store) *Ingestor {
	return &Ingestor{Parser: parser, Embedder: emb, Store: st}
}

// Analyze runs one PDF's bytes through the external parser and the TEI
// parser, returning the parsed paper (and thus its minted key) without
// touching the store.
func (ing *Ingestor) Analyze(ctx context.Context, pdfBytes []byte) (*core.ParsedPaper, error) {
	xml, err := ing.Parser.ProcessPDF(ctx, pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("processing PDF: %w", err)
	}

	parsed, err := grobid.Parse(xml)
	if err != nil {
		return nil, fmt.Errorf("parsing grobid response: %w", err)
	}
	return parsed, nil
}

// Commit embeds a parsed paper's paragraphs and writes the result to the
// store in one transaction.
func (ing *Ingestor) Commit(ctx context.Context, parsed *core.ParsedPaper) error {
	texts := make([]string, len(parsed.Paragraphs))
	for i, p := range parsed.Paragraphs {
		texts[i] = p.Text
	}

	embeddings, err := ing.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding paragraphs: %w", err)
	}
	if len(embeddings) != len(parsed.Paragraphs) {
		return fmt.Errorf("embedder returned %d vectors for %d paragraphs", len(embeddings), len(parsed.Paragraphs))
	}

	embeddedParagraphs := make([]core.EmbeddedParagraph, len(parsed.Paragraphs))
	for i, p := range parsed.Paragraphs {
		embeddedParagraphs[i] = core.EmbeddedParagraph{
			Text:      p.Text,
			CitedKeys: p.CitedKeys,
			Embedding: embeddings[i],
		}
	}

	embeddedPaper := core.EmbeddedPaper{
		Key:        parsed.Key,
		Title:      parsed.Title,
		Authors:    parsed.Authors,
		Year:       parsed.Year,
		Paragraphs: embeddedParagraphs,
		References: parsed.References,
	}

	if err := ing.Store.Ingest(embeddedPaper); err != nil {
		return fmt.Errorf("storing ingested paper: %w", err)
	}
	logger.Debug("ingested paper", "key", parsed.Key, "paragraphs", len(parsed.Paragraphs), "references", len(parsed.References))
	return nil
}

// Ingest processes one PDF's bytes end to end: parse, embed, store.
// It returns the citation key the paper was minted under.
func (ing *Ingestor) Ingest(ctx context.Context, pdfBytes []byte) (string, error) {
	parsed, err := ing.Analyze(ctx, pdfBytes)
	if err != nil {
		return "", err
	}
	if err := ing.Commit(ctx, parsed); err != nil {
		return "", err
	}
	return parsed.Key, nil
}

// SyncResult summarizes the outcome of a directory sync pass.
type SyncResult struct {
	Ingested []string
	Skipped  []string
	Renamed  []string
	Removed  []string
	Failed   map[string]error
}

// Sync scans pdfDir for *.pdf files and reconciles them against the store:
// already-processed files (by filename stem) are skipped; unprocessed
// files are parsed to discover their citation key, and either ingested and
// renamed to "<key>.pdf", or, if that key is already processed, treated
// as a duplicate and removed (when a canonical file already exists) or
// renamed to the canonical name.
func (ing *Ingestor) Sync(ctx context.Context, pdfDir string) (*SyncResult, error) {
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return nil, fmt.Errorf("reading pdf directory %q: %w", pdfDir, err)
	}

	result := &SyncResult{Failed: make(map[string]error)}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(pdfDir, entry.Name())
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		alreadyProcessed, err := ing.Store.IsProcessed(stem)
		if err != nil {
			result.Failed[entry.Name()] = err
			continue
		}
		if alreadyProcessed {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}

		pdfBytes, err := os.ReadFile(path)
		if err != nil {
			result.Failed[entry.Name()] = fmt.Errorf("reading %q: %w", path, err)
			continue
		}

		parsed, err := ing.Analyze(ctx, pdfBytes)
		if err != nil {
			result.Failed[entry.Name()] = fmt.Errorf("analyzing %q: %w", path, err)
			continue
		}

		keyProcessed, err := ing.Store.IsProcessed(parsed.Key)
		if err != nil {
			result.Failed[entry.Name()] = err
			continue
		}

		canonicalPath := filepath.Join(pdfDir, parsed.Key+".pdf")

		if keyProcessed {
			if _, err := os.Stat(canonicalPath); err == nil {
				if err := os.Remove(path); err != nil {
					result.Failed[entry.Name()] = fmt.Errorf("removing duplicate %q: %w", path, err)
					continue
				}
				logger.Info("removed duplicate pdf", "file", entry.Name(), "key", parsed.Key)
				result.Removed = append(result.Removed, entry.Name())
			} else {
				if err := os.Rename(path, canonicalPath); err != nil {
					result.Failed[entry.Name()] = fmt.Errorf("renaming duplicate %q: %w", path, err)
					continue
				}
				logger.Info("renamed duplicate pdf", "file", entry.Name(), "key", parsed.Key)
				result.Renamed = append(result.Renamed, entry.Name())
			}
			continue
		}

		if err := ing.Commit(ctx, parsed); err != nil {
			result.Failed[entry.Name()] = fmt.Errorf("storing %q: %w", path, err)
			continue
		}

		if path != canonicalPath {
			if err := os.Rename(path, canonicalPath); err != nil {
				result.Failed[entry.Name()] = fmt.Errorf("renaming %q to canonical name: %w", path, err)
				continue
			}
		}

		result.Ingested = append(result.Ingested, parsed.Key)
	}

	return result, nil
}

// EnsureGrobidReady blocks until the parser answers its health check,
// driving a progress spinner while it waits.
func EnsureGrobidReady(ctx context.Context, client *GrobidClient) error {
	if client.IsAlive(ctx) {
		return nil
	}
	if !client.WaitUntilReady(ctx, 300*time.Second) {
		return fmt.Errorf("grobid failed to start within 300s")
	}
	return nil
}
