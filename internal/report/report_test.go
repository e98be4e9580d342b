package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"bib/internal/core"
)

func TestDaysToYMD(t *testing.T) {
	cases := []struct {
		days    int64
		y, m, d int
	}{
		{0, 1970, 1, 1},
		{365, 1971, 1, 1},
		{11016, 2000, 2, 29},
		{19723, 2024, 1, 1},
	}
	for _, tc := range cases {
		y, m, d := daysToYMD(tc.days)
		if y != tc.y || m != tc.m || d != tc.d {
			t.Errorf("daysToYMD(%d) = %d-%d-%d, want %d-%d-%d", tc.days, y, m, d, tc.y, tc.m, tc.d)
		}
	}
}

func TestDaysToYMD_MatchesTimePackage(t *testing.T) {
	for _, unix := range []int64{0, 86400 * 100, 86400 * 10000, 86400 * 20000, 1700000000 - 1700000000%86400} {
		y, m, d := daysToYMD(unix / 86400)
		wy, wm, wd := time.Unix(unix, 0).UTC().Date()
		if y != wy || int(wm) != m || d != wd {
			t.Errorf("daysToYMD(%d) = %d-%d-%d, want %d-%d-%d", unix/86400, y, m, d, wy, wm, wd)
		}
	}
}

func TestWrapMarkdownDocument(t *testing.T) {
	doc := wrapMarkdownDocument("my query", "Body text.", 0)

	if !strings.HasPrefix(doc, "---\n") {
		t.Errorf("document should start with YAML frontmatter, got %q", doc[:20])
	}
	if !strings.Contains(doc, `date: "1970-01-01"`) {
		t.Errorf("document missing epoch date: %q", doc)
	}
	if !strings.Contains(doc, "Research Report: my query") {
		t.Errorf("document missing query-derived title: %q", doc)
	}
	if !strings.Contains(doc, "## References") {
		t.Errorf("document should end with a References section: %q", doc)
	}
}

func TestGenerateCSLJSON_IsValidJSON(t *testing.T) {
	papers := []core.Paper{
		{Key: "smith_ph", Title: `PH "quoted" title`, Authors: "Smith, Jones", Year: 2019, Link: "https://doi.org/10.1/x"},
		{Key: "unknown_fields"},
	}

	raw := generateCSLJSON(papers)

	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("generateCSLJSON produced invalid JSON: %v\n%s", err, raw)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	first := entries[0]
	if first["id"] != "smith_ph" || first["type"] != "article" {
		t.Errorf("entry = %+v", first)
	}
	if first["URL"] != "https://doi.org/10.1/x" {
		t.Errorf("URL = %v", first["URL"])
	}
	authors, ok := first["author"].([]any)
	if !ok || len(authors) != 2 {
		t.Fatalf("author = %+v, want two entries", first["author"])
	}

	second := entries[1]
	if _, hasURL := second["URL"]; hasURL {
		t.Error("entry without a link should omit URL")
	}
	if second["title"] != "Unknown Title" {
		t.Errorf("missing title should default, got %v", second["title"])
	}
}

func TestParseAuthorsToCSL(t *testing.T) {
	got := parseAuthorsToCSL("John Smith and Mary Jones")
	if !strings.Contains(got, `"family": "Smith"`) || !strings.Contains(got, `"given": "John"`) {
		t.Errorf("given/family split failed: %q", got)
	}
	if !strings.Contains(got, `"family": "Jones"`) {
		t.Errorf("second author lost: %q", got)
	}

	got = parseAuthorsToCSL("Smith, Jones")
	if !strings.Contains(got, `"family": "Smith"`) || !strings.Contains(got, `"family": "Jones"`) {
		t.Errorf("surname-only list split failed: %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := sanitizeFilename("persistent homology for proteins?")
	if got != "persistent_homology_for_proteins_" {
		t.Errorf("sanitizeFilename = %q", got)
	}
}

func TestRelevantKeys(t *testing.T) {
	contexts := []core.ParagraphContext{
		{SourceKey: "chen_rev", CitedKeys: []string{"smith_ph", "jones_ph"}},
		{SourceKey: "chen_rev", CitedKeys: []string{"smith_ph", "munkres_top"}},
	}
	keys := RelevantKeys(contexts)

	want := []string{"chen_rev", "jones_ph", "munkres_top", "smith_ph"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestEscapeJSON(t *testing.T) {
	got := escapeJSON("a \"b\"\nc\\d")
	if got != `a \"b\"\nc\\d` {
		t.Errorf("escapeJSON = %q", got)
	}
}
