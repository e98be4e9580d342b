// Package report composes a grounded literature-review PDF from a
// similarity search's surviving paragraphs: a strict-grounding prose pass
// from the LLM, a CSL-JSON bibliography built from the papers those
// paragraphs mention, and a pandoc invocation that stitches the two into a
// PDF in the caller's working directory.
package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"bib/internal/core"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for report prose generation.
const DefaultModel = "gemini-2.5-flash"

// Store is the subset of internal/store.Store the Composer needs.
type Store interface {
	GetPapers(keys []string, processedOnly bool) ([]core.Paper, error)
}

// Composer turns a context pool into a grounded PDF report.
type Composer struct {
	client *genai.Client
	model  string
	Store  Store
}

// New returns a Composer backed by client and store.
func New(client *genai.Client, st Store) *Composer {
	return &Composer{client: client, model: DefaultModel, Store: st}
}

const reportPrompt = `## Your Task
Write a comprehensive, cohesive literature review answering the provided query based **STRICTLY AND EXCLUSIVELY** on the provided contexts. This should read like a "Related Work" or "Background" section of an academic paper.

## Absolute Rules
1. EVERY claim, finding, or statement must originate from a provided context.
2. EVERY claim must cite the paper(s) from which it derives.
3. If a context doesn't support a claim, you CANNOT make that claim.
4. DO NOT use outside knowledge, even if you believe it to be true.
5. If contexts are insufficient to answer the query, explicitly state what cannot be addressed.

## Output Format
- Return PURE Markdown content (with LaTeX math where appropriate).
- Do NOT include YAML frontmatter, titles, or meta-commentary. Start directly with substantive content.
- Single citation: [@paper_key]. Multiple: [@key1; @key2; @key3].
- Use ## and ### headers to organize by theme relevant to the query.
- Synthesize findings by theme rather than listing papers one by one, while keeping every claim's attribution precise.

---

QUERY: %s

CONTEXTS:
%s`

// BuildContexts renders a similarity search's surviving paragraphs into the
// same "Context (from: key, similarity: 0.NN):\n\"text\"" blocks the rerank
// prompt uses.
func BuildContexts(contexts []core.ParagraphContext, similarities map[int64]float64) string {
	blocks := make([]string, len(contexts))
	for i, ctx := range contexts {
		blocks[i] = fmt.Sprintf("Context (from: %s, similarity: %.2f):\n\"%s\"", ctx.SourceKey, similarities[ctx.ID], ctx.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// RelevantKeys collects every key mentioned by a set of contexts: each
// paragraph's own source paper plus everything it cites.
func RelevantKeys(contexts []core.ParagraphContext) []string {
	seen := make(map[string]bool)
	for _, ctx := range contexts {
		seen[ctx.SourceKey] = true
		for _, k := range ctx.CitedKeys {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Generate calls the LLM for grounded prose, builds a CSL-JSON bibliography
// from papers, wraps both into a markdown document and Pandoc bibliography
// file under a temp directory, invokes pandoc to produce a PDF, and copies
// the result into outDir under a filename derived from query. It returns
// the path to the written PDF.
func (c *Composer) Generate(ctx context.Context, query string, contexts []core.ParagraphContext, similarities map[int64]float64, papers []core.Paper, outDir string, now int64) (string, error) {
	if len(papers) == 0 {
		return "", fmt.Errorf("no bibliography data found for contexts")
	}

	contextStr := BuildContexts(contexts, similarities)
	prompt := fmt.Sprintf(reportPrompt, query, contextStr)

	temperature := float32(0.3)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	content := []*genai.Content{{Parts: []*genai.Part{{Text: prompt}}, Role: "user"}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, content, config)
	if err != nil {
		return "", fmt.Errorf("generating report content: %w", err)
	}
	body := resp.Text()
	if body == "" {
		return "", fmt.Errorf("report generation returned an empty response")
	}

	tempDir, err := os.MkdirTemp("", "bib_report_")
	if err != nil {
		return "", fmt.Errorf("creating temp build directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	mdContent := wrapMarkdownDocument(query, body, now)
	bibContent := generateCSLJSON(papers)

	mdPath := filepath.Join(tempDir, "report.md")
	bibPath := filepath.Join(tempDir, "refs.json")
	if err := os.WriteFile(mdPath, []byte(mdContent), 0o644); err != nil {
		return "", fmt.Errorf("writing report markdown: %w", err)
	}
	if err := os.WriteFile(bibPath, []byte(bibContent), 0o644); err != nil {
		return "", fmt.Errorf("writing CSL-JSON bibliography: %w", err)
	}

	if err := runPandoc(tempDir, "report.md", "refs.json", "report.pdf"); err != nil {
		return "", err
	}

	pdfSource := filepath.Join(tempDir, "report.pdf")
	if _, err := os.Stat(pdfSource); err != nil {
		return "", fmt.Errorf("pandoc did not produce report.pdf: %w", err)
	}

	outputFilename := fmt.Sprintf("report_%s.pdf", sanitizeFilename(query))
	outputPath := filepath.Join(outDir, outputFilename)

	src, err := os.ReadFile(pdfSource)
	if err != nil {
		return "", fmt.Errorf("reading compiled PDF: %w", err)
	}
	if err := os.WriteFile(outputPath, src, 0o644); err != nil {
		return "", fmt.Errorf("writing report to %q: %w", outputPath, err)
	}

	return outputPath, nil
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// wrapMarkdownDocument wraps body in a YAML-frontmatter document pandoc can
// compile, stamped with the civil date derived from now (Unix seconds).
func wrapMarkdownDocument(title, body string, now int64) string {
	year, month, day := daysToYMD(now / 86400)
	dateStr := fmt.Sprintf("%04d-%02d-%02d", year, month, day)

	return fmt.Sprintf(`---
title: "Research Report: %s"
author: "bib"
date: "%s"
---

%s

## References
`, title, dateStr, body)
}

// daysToYMD converts a count of days since the Unix epoch into a
// (year, month, day) civil date, per Howard Hinnant's date algorithms
// (http://howardhinnant.github.io/date_algorithms.html).
func daysToYMD(days int64) (year int, month int, day int) {
	z := days + 719468
	era := z
	if z < 0 {
		era = z - 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}

// generateCSLJSON builds a Pandoc-compatible CSL-JSON bibliography by hand,
// mirroring the shape citeproc expects without pulling in a general-purpose
// CSL library the pack does not otherwise use.
func generateCSLJSON(papers []core.Paper) string {
	entries := make([]string, len(papers))
	for i, p := range papers {
		title := p.Title
		if title == "" {
			title = "Unknown Title"
		}
		authors := p.Authors
		if authors == "" {
			authors = "Unknown"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "  {\n    \"id\": \"%s\",\n    \"type\": \"article\",\n    \"author\": [%s],\n    \"title\": \"%s\",\n    \"issued\": {\"date-parts\": [[%d]]}",
			escapeJSON(p.Key), parseAuthorsToCSL(authors), escapeJSON(title), p.Year)
		if p.Link != "" {
			fmt.Fprintf(&b, ",\n    \"URL\": \"%s\"", escapeJSON(p.Link))
		}
		b.WriteString("\n  }")
		entries[i] = b.String()
	}
	return "[\n" + strings.Join(entries, ",\n") + "\n]"
}

// parseAuthorsToCSL splits a comma- or "and"-joined author string into
// CSL-JSON author objects, preferring a "Family, Given" split when a comma
// is present and falling back to "last word is the family name" otherwise.
func parseAuthorsToCSL(authors string) string {
	var list []string
	if strings.Contains(authors, " and ") {
		list = strings.Split(authors, " and ")
	} else {
		list = strings.Split(authors, ", ")
	}

	out := make([]string, len(list))
	for i, a := range list {
		trimmed := strings.TrimSpace(a)
		if idx := strings.IndexByte(trimmed, ','); idx >= 0 {
			family := strings.TrimSpace(trimmed[:idx])
			given := strings.TrimSpace(trimmed[idx+1:])
			out[i] = fmt.Sprintf(`{"family": "%s", "given": "%s"}`, escapeJSON(family), escapeJSON(given))
			continue
		}
		parts := strings.Fields(trimmed)
		if len(parts) >= 2 {
			family := parts[len(parts)-1]
			given := strings.Join(parts[:len(parts)-1], " ")
			out[i] = fmt.Sprintf(`{"family": "%s", "given": "%s"}`, escapeJSON(family), escapeJSON(given))
			continue
		}
		out[i] = fmt.Sprintf(`{"family": "%s"}`, escapeJSON(trimmed))
	}
	return strings.Join(out, ", ")
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

// runPandoc invokes pandoc in dir to compile mdFile plus bibFile's CSL-JSON
// bibliography into outputFile, using xelatex for math-heavy prose.
func runPandoc(dir, mdFile, bibFile, outputFile string) error {
	cmd := exec.Command("pandoc",
		"--citeproc",
		"--bibliography="+bibFile,
		"--pdf-engine=xelatex",
		"-V", "geometry:margin=1in",
		mdFile,
		"-o", outputFile,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pandoc failed: %w\n%s", err, out)
	}
	return nil
}
