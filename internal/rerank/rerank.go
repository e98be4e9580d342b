// Package rerank runs the second-stage LLM pass over a similarity search's
// surviving paragraphs: it asks the model which CITED papers actually answer
// the query, grounded strictly in how those papers appear inside the
// retrieved contexts, and renders the answer as a small citation tree.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bib/internal/core"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for reranking.
const DefaultModel = "gemini-2.5-flash"

// Store is the subset of internal/store.Store the Reranker needs.
type Store interface {
	GetPapers(keys []string, processedOnly bool) ([]core.Paper, error)
}

// Reranker asks an LLM which cited papers in a context pool answer a query.
type Reranker struct {
	client *genai.Client
	model  string
	Store  Store
}

// New returns a Reranker backed by client and store.
func New(client *genai.Client, st Store) *Reranker {
	return &Reranker{client: client, model: DefaultModel, Store: st}
}

// RankedPaper is one entry of the model's ranked answer: a cited paper, why
// it answers the query, and which of the retrieved source papers cite it.
type RankedPaper struct {
	Key         string   `json:"key"`
	Explanation string   `json:"explanation"`
	CitedBy     []string `json:"cited_by"`
}

// queryResponse is the JSON shape the model is constrained to produce.
type queryResponse struct {
	Papers []RankedPaper `json:"papers"`
}

const rerankPrompt = `You are a research librarian helping find papers that answer a specific query.

## Your Task
Given a query and a set of citation contexts from academic papers, identify which CITED papers best answer the query.

## How This Works
Each context is a paragraph from a paper that cites other papers. Citations appear as [paper_key] or [key1, key2].
Your job is to find papers that are cited IN THE CONTEXT OF answering the query.

## Critical Rules
1. ANSWER THE QUERY FIRST. Only include papers that directly address what the user is asking.
2. DO NOT include papers just because they are frequently cited or foundational. A famous paper cited 100 times is IRRELEVANT if it doesn't answer the specific query.
3. Look for papers cited when authors discuss the query topic. If someone asks about "applications of X" and a context says "X has been applied to images [paper_a] and audio [paper_b]", those papers answer the query.
4. IGNORE papers cited for background, methodology, or unrelated context.
5. The explanation must come from HOW THE PAPER IS CITED, not from your general knowledge.

## Output Format
Order the papers by relevance to query (best first). Include max 20 papers.
Each paper needs: key (exact match from citations), explanation (2-3 sentences from context), cited_by (source papers, max 3).

If NO papers in the contexts actually answer the query, return an empty papers array. Do not force irrelevant results.

---

QUERY: %s

CONTEXTS:
%s`

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"papers": {
				Type:        genai.TypeArray,
				Description: "Ordered list of papers that best answer the query. Most relevant first. Max 20.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"key": {
							Type:        genai.TypeString,
							Description: `The paper key exactly as it appears in the citation brackets, e.g. "smith_topology"`,
						},
						"explanation": {
							Type:        genai.TypeString,
							Description: "Two or three sentences explaining why this paper answers the query, based on how it is cited",
						},
						"cited_by": {
							Type:        genai.TypeArray,
							Description: "Keys of papers that cite this paper in a way relevant to the query (max 3)",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"key", "explanation"},
				},
			},
		},
		Required: []string{"papers"},
	}
}

// BuildContexts renders a similarity search's surviving paragraphs into the
// "Context (from: key, similarity: 0.NN):\n\"text\"" blocks the prompt
// expects, in the order contexts is given.
func BuildContexts(contexts []core.ParagraphContext, similarities map[int64]float64) string {
	blocks := make([]string, len(contexts))
	for i, ctx := range contexts {
		blocks[i] = fmt.Sprintf("Context (from: %s, similarity: %.2f):\n\"%s\"", ctx.SourceKey, similarities[ctx.ID], ctx.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// citationKeysInMarkers collects every key that appears inside a "[key1,
// key2]" inline citation marker in text, the grounding surface a reranked
// key must appear within to be trusted.
func citationKeysInMarkers(text string) map[string]bool {
	keys := make(map[string]bool)
	for {
		start := strings.IndexByte(text, '[')
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], ']')
		if end < 0 {
			break
		}
		inside := text[start+1 : start+end]
		for _, part := range strings.Split(inside, ",") {
			if k := strings.TrimSpace(part); k != "" {
				keys[k] = true
			}
		}
		text = text[start+end+1:]
	}
	return keys
}

// groundPapers drops any ranked paper whose key never appears inside a
// citation marker: the model is only trusted about papers it could actually
// have seen cited in the contexts.
func groundPapers(papers []RankedPaper, marked map[string]bool) []RankedPaper {
	var out []RankedPaper
	for _, p := range papers {
		if marked[p.Key] {
			out = append(out, p)
		}
	}
	return out
}

// Result is the outcome of a rerank pass: the ranked papers the model
// returned, plus the metadata rows needed to display them.
type Result struct {
	Papers   []RankedPaper
	Metadata map[string]core.Paper
}

// Rank calls the LLM with query and the rendered context pool, verifies
// every returned key is actually grounded in a "[...]" marker somewhere in
// contextText, and loads display metadata for every key mentioned.
func (r *Reranker) Rank(ctx context.Context, query, contextText string) (*Result, error) {
	prompt := fmt.Sprintf(rerankPrompt, query, contextText)

	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("reranking query: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("reranker returned an empty response")
	}

	var parsed queryResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parsing reranker response: %w", err)
	}

	grounded := groundPapers(parsed.Papers, citationKeysInMarkers(contextText))

	if len(grounded) == 0 {
		return &Result{}, nil
	}

	keySet := make(map[string]bool)
	for _, p := range grounded {
		keySet[p.Key] = true
		for _, c := range p.CitedBy {
			keySet[c] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	papers, err := r.Store.GetPapers(keys, false)
	if err != nil {
		return nil, fmt.Errorf("loading paper metadata: %w", err)
	}
	metadata := make(map[string]core.Paper, len(papers))
	for _, p := range papers {
		metadata[p.Key] = p
	}

	return &Result{Papers: grounded, Metadata: metadata}, nil
}

// Render writes the ranked papers as a small citation tree to w, truncating
// each header to width and word-wrapping explanations to width-5.
func Render(w *strings.Builder, result *Result, topK, width int) {
	if result == nil || len(result.Papers) == 0 {
		w.WriteString("No papers found that directly answer the query.\n")
		return
	}

	papers := result.Papers
	if topK > 0 && len(papers) > topK {
		papers = papers[:topK]
	}

	for _, p := range papers {
		meta, ok := result.Metadata[p.Key]
		year, authors, title := "----", "Unknown", p.Key
		if ok {
			if meta.Year != 0 {
				year = strconv.Itoa(meta.Year)
			}
			if meta.Authors != "" {
				authors = meta.Authors
			}
			if meta.Title != "" {
				title = meta.Title
			}
		}
		header := truncateToWidth(fmt.Sprintf("%s %s • %s", year, authors, title), width)
		fmt.Fprintf(w, "\n%s\n", header)

		textWidth := width - 5
		if textWidth < 10 {
			textWidth = 10
		}
		for i, line := range wrapText(p.Explanation, textWidth) {
			if i == 0 {
				fmt.Fprintf(w, "  ├─ %s\n", line)
			} else {
				fmt.Fprintf(w, "  │  %s\n", line)
			}
		}

		if len(p.CitedBy) > 0 {
			fmt.Fprintf(w, "  └─ Refs: %s\n", strings.Join(p.CitedBy, ", "))
		} else {
			w.WriteString("  └─\n")
		}
	}
}

func truncateToWidth(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func wrapText(text string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur string
		for _, word := range words {
			switch {
			case cur == "":
				cur = word
			case len(cur)+1+len(word) <= width:
				cur = cur + " " + word
			default:
				lines = append(lines, cur)
				cur = word
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}
