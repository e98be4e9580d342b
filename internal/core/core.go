// Package core holds the plain domain types shared across package boundaries:
// the parsed-paper shape produced by the XML parser, the embedded form handed
// to the store, and the lightweight projections the store hands back to the
// retrieval and reporting paths.
package core

// CitationKey is a short, deterministic, human-readable identifier for a
// paper, minted from its first author's surname and leading title tokens.
type CitationKey = string

// Reference is a paper mentioned in another paper's bibliography, as
// extracted from the source paper's listBibl. It may or may not also be a
// Paper the store has ingested directly.
type Reference struct {
	Key     CitationKey `json:"key"`
	Title   string      `json:"title"`
	Authors string      `json:"authors"` // comma-joined surnames
	Year    string      `json:"year"`    // empty if absent; 4-digit string when present
	Link    string      `json:"link"`    // empty if unresolved
}

// Paragraph is a unit of prose extracted from a source paper's body, already
// merged across column/page breaks and annotated with inline citation
// markers rewritten as "[key1, key2]".
type Paragraph struct {
	Text      string   `json:"text"`       // enriched text, citation markers inlined
	CitedKeys []string `json:"cited_keys"` // sorted, deduplicated
}

// ParsedPaper is the output of the GrobidXmlParser: the source paper's own
// metadata plus everything it cites and says.
type ParsedPaper struct {
	Key        CitationKey `json:"key"`
	Title      string      `json:"title"`
	Authors    string      `json:"authors"`
	Year       string      `json:"year"`
	Paragraphs []Paragraph `json:"paragraphs"`
	References []Reference `json:"references"`
}

// EmbeddedParagraph is a Paragraph plus its embedding vector, produced once
// the Ingestor has batched all of a paper's paragraph texts through the
// Embedder.
type EmbeddedParagraph struct {
	Text      string    `json:"text"`
	CitedKeys []string  `json:"cited_keys"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddedPaper is a ParsedPaper whose paragraphs now carry embeddings,
// ready for CitationStore.Ingest.
type EmbeddedPaper struct {
	Key        CitationKey         `json:"key"`
	Title      string              `json:"title"`
	Authors    string              `json:"authors"`
	Year       string              `json:"year"`
	Paragraphs []EmbeddedParagraph `json:"paragraphs"`
	References []Reference         `json:"references"`
}

// Paper is a row of the papers table: a node in the citation graph that is
// either a source (backed by an ingested PDF, present in Processed) or a
// reference (known only from someone else's bibliography).
type Paper struct {
	Key         CitationKey `json:"key"`
	Title       string      `json:"title"`   // empty means unknown
	Authors     string      `json:"authors"` // empty means unknown
	Year        int         `json:"year"`    // 0 means absent
	Link        string      `json:"link"`    // empty means absent; always empty once Processed
	Processed   bool        `json:"processed"`
	LastTouched int64       `json:"last_touched"` // Unix seconds
}

// ParagraphEmbedding is the lightweight projection of a paragraphs row used
// for the linear similarity scan: no text, just enough to score.
type ParagraphEmbedding struct {
	ID        int64     `json:"id"`
	Embedding []float32 `json:"embedding"`
}

// ParagraphContext is the full projection of a paragraphs row (plus its
// citation edges) used once a paragraph has survived the similarity cutoff
// and is being handed to the LLM.
type ParagraphContext struct {
	ID        int64       `json:"id"`
	SourceKey CitationKey `json:"source_key"`
	Text      string      `json:"text"`
	CitedKeys []string    `json:"cited_keys"`
}

// Stats summarizes the store's size for status reporting.
type Stats struct {
	PaperCount     int `json:"paper_count"`
	ParagraphCount int `json:"paragraph_count"`
	CitationCount  int `json:"citation_count"`
}
