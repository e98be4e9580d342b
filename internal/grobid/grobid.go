// Package grobid parses the TEI XML a GROBID-compatible fulltext service
// returns into the plain core.ParsedPaper shape: the source paper's own
// metadata, its bibliography as a list of core.Reference, and its body as a
// sequence of core.Paragraph with inline citation markers resolved against
// the bibliography.
package grobid

import (
	"bytes"
	"sort"
	"strings"
	"unicode"

	"bib/internal/citationkey"
	"bib/internal/core"
)

// Parse reads one TEI document produced by processFulltextDocument and
// extracts the paper's header metadata, bibliography, and body paragraphs.
func Parse(xmlBytes []byte) (*core.ParsedPaper, error) {
	root, err := parseTree(bytes.NewReader(xmlBytes))
	if err != nil {
		return nil, err
	}

	title, authors, year := extractMetadata(root)
	references, markerToKey := extractReferences(root)
	paragraphs := extractParagraphs(root, markerToKey)

	var surnames []string
	if authors != "" {
		surnames = strings.Split(authors, ", ")
	}
	key := citationkey.Mint(surnames, title)

	return &core.ParsedPaper{
		Key:        key,
		Title:      title,
		Authors:    authors,
		Year:       year,
		Paragraphs: paragraphs,
		References: references,
	}, nil
}

// extractMetadata reads the title and author surnames from teiHeader's
// fileDesc, and the publication year from its first date element.
func extractMetadata(root *node) (title, authors, year string) {
	title = "Unknown Title"

	fileDesc := findElement(root, "fileDesc")
	if fileDesc == nil {
		return title, "", ""
	}

	if titleEl := findElement(fileDesc, "title"); titleEl != nil {
		if text := allText(titleEl); text != "" {
			title = text
		}
	}

	var surnames []string
	for _, author := range findElements(fileDesc, "author") {
		if surname, ok := extractAuthorSurname(author); ok {
			surnames = append(surnames, surname)
		}
	}
	authors = strings.Join(surnames, ", ")

	if dateEl := findElement(fileDesc, "date"); dateEl != nil {
		if when, ok := dateEl.attr("when"); ok {
			year = extractYear(when)
		}
	}

	return title, authors, year
}

// extractAuthorSurname returns the first surname text found under an
// author's persName, if any.
func extractAuthorSurname(author *node) (string, bool) {
	persName := findElement(author, "persName")
	if persName == nil {
		persName = author
	}
	surname := findElement(persName, "surname")
	if surname == nil {
		return "", false
	}
	text := allText(surname)
	if text == "" {
		return "", false
	}
	return text, true
}

// extractYear returns the leading digit run of a date string up to the
// first '-', matching GROBID's "YYYY-MM-DD" and "YYYY" date encodings.
func extractYear(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	end := 0
	for end < len(dateStr) && dateStr[end] >= '0' && dateStr[end] <= '9' {
		end++
	}
	return dateStr[:end]
}

// extractReferences walks every biblStruct in the back matter's
// listBibl, building both the Reference list and the marker-to-key map
// used to resolve inline citations in the body.
func extractReferences(root *node) ([]core.Reference, map[string]string) {
	listBibl := findElement(root, "listBibl")
	if listBibl == nil {
		return nil, map[string]string{}
	}

	biblStructs := findElements(listBibl, "biblStruct")
	references := make([]core.Reference, 0, len(biblStructs))
	markerToKey := make(map[string]string, len(biblStructs))

	for _, bs := range biblStructs {
		title := "Untitled"
		if titleEl := preferredTitle(bs); titleEl != nil {
			if text := allText(titleEl); text != "" {
				title = text
			}
		}

		var surnames []string
		for _, author := range findElements(bs, "author") {
			if surname, ok := extractAuthorSurname(author); ok {
				surnames = append(surnames, surname)
			}
		}
		authors := strings.Join(surnames, ", ")

		year := ""
		for _, dateEl := range findElements(bs, "date") {
			if t, ok := dateEl.attr("type"); !ok || t != "published" {
				continue
			}
			if when, ok := dateEl.attr("when"); ok {
				year = extractYear(when)
			}
			break
		}

		link := resolveLink(bs)

		key := citationkey.Mint(surnames, title)

		references = append(references, core.Reference{
			Key:     key,
			Title:   title,
			Authors: authors,
			Year:    year,
			Link:    link,
		})

		if id, ok := bs.xmlID(); ok {
			markerToKey[id] = key
		}
	}

	return references, markerToKey
}

// preferredTitle returns the title element marked analytic (level="a"), or
// the first title element found if none carries that attribute.
func preferredTitle(bs *node) *node {
	for _, t := range findElements(bs, "title") {
		if level, ok := t.attr("level"); ok && level == "a" {
			return t
		}
	}
	return findElement(bs, "title")
}

// idnoPrefixes lists the case-sensitive prefixes stripped from an idno's
// raw text before it is embedded in a resolved link.
var idnoPrefixes = []string{"DOI:", "doi:", "arXiv:", "arxiv:", "PMID:", "pmid:"}

func stripIdnoPrefix(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range idnoPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	return strings.TrimSpace(s)
}

// resolveLink prefers a DOI, then an arXiv identifier, then a PMID, then
// falls back to a generic ptr element's target.
func resolveLink(bs *node) string {
	if doi, ok := extractIdno(bs, "DOI"); ok {
		return "https://doi.org/" + stripIdnoPrefix(doi)
	}
	if arxiv, ok := extractIdno(bs, "arxiv"); ok {
		return "https://arxiv.org/abs/" + stripIdnoPrefix(arxiv)
	}
	if pmid, ok := extractIdno(bs, "PMID"); ok {
		return "https://pubmed.ncbi.nlm.nih.gov/" + stripIdnoPrefix(pmid)
	}
	if ptr := findElement(bs, "ptr"); ptr != nil {
		if target, ok := ptr.attr("target"); ok && strings.TrimSpace(target) != "" {
			return strings.TrimSpace(target)
		}
		if text := allText(ptr); text != "" {
			return text
		}
	}
	return ""
}

// extractIdno returns the text of the first idno element whose type
// attribute matches idType, case-insensitively.
func extractIdno(bs *node, idType string) (string, bool) {
	for _, idno := range findElements(bs, "idno") {
		if t, ok := idno.attr("type"); ok && strings.EqualFold(t, idType) {
			text := allText(idno)
			if text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// extractParagraphs walks the body's paragraph elements, merging
// continuation chunks (those starting lowercase) into the previous
// paragraph and repairing line-break hyphenation, then resolves every ref
// marker against markerToKey and inlines it as "[key1, key2]".
func extractParagraphs(root *node, markerToKey map[string]string) []core.Paragraph {
	body := findElement(root, "body")
	if body == nil {
		return nil
	}

	var result []core.Paragraph

	// Buffer for the logical paragraph currently being assembled across
	// column/page-break splits.
	var bufText string
	var bufCites []string
	active := false

	for _, p := range findElements(body, "p") {
		text, cites := extractParagraphText(p, markerToKey)
		if strings.TrimSpace(text) == "" {
			continue
		}

		if active && startsLowercase(text) {
			trimmed := strings.TrimRight(bufText, " ")
			if strings.HasSuffix(trimmed, "-") {
				bufText = strings.TrimRight(trimmed, "-") + text
			} else {
				bufText = bufText + " " + text
			}
			bufCites = append(bufCites, cites...)
			continue
		}

		if active {
			pushIfValid(&result, bufText, bufCites)
		}
		bufText = text
		bufCites = cites
		active = true
	}

	if active {
		pushIfValid(&result, bufText, bufCites)
	}
	return result
}

// pushIfValid sort-dedups cites and appends the paragraph, but only if it
// cites at least one resolved reference. Paragraphs with no citations carry
// no citation-graph signal and are not stored.
func pushIfValid(result *[]core.Paragraph, text string, cites []string) {
	cites = dedupeSorted(cites)
	if len(cites) == 0 {
		return
	}
	*result = append(*result, core.Paragraph{
		Text:      text,
		CitedKeys: cites,
	})
}

func startsLowercase(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

func dedupeSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// extractParagraphText renders a paragraph node's text recursively,
// collecting every citation key resolved along the way.
func extractParagraphText(p *node, markerToKey map[string]string) (string, []string) {
	var buf strings.Builder
	var cites []string
	extractTextRecursive(p, &buf, markerToKey, &cites)
	return collapseWhitespace(buf.String()), cites
}

// extractTextRecursive walks a node's children in document order, writing
// text nodes verbatim and rewriting ref elements whose target contains
// "#b" into an inline "[key1, key2]" marker resolved via markerToKey.
func extractTextRecursive(n *node, buf *strings.Builder, markerToKey map[string]string, cites *[]string) {
	for _, c := range n.children {
		if c.isText {
			buf.WriteString(c.text)
			continue
		}
		if c.name == "ref" {
			target, _ := c.attr("target")
			if strings.Contains(target, "#b") {
				var keys []string
				for _, part := range strings.Fields(target) {
					id := strings.TrimPrefix(part, "#")
					if !strings.HasPrefix(id, "b") {
						continue
					}
					if key, ok := markerToKey[id]; ok {
						keys = append(keys, key)
					}
				}
				if len(keys) > 0 {
					buf.WriteString("[" + strings.Join(keys, ", ") + "]")
					*cites = append(*cites, keys...)
					continue
				}
			}
			extractTextRecursive(c, buf, markerToKey, cites)
			continue
		}
		extractTextRecursive(c, buf, markerToKey, cites)
	}
}
