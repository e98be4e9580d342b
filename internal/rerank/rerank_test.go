package rerank

import (
	"strings"
	"testing"

	"bib/internal/core"
)

func TestCitationKeysInMarkers(t *testing.T) {
	text := `PH was applied to proteins [smith_ph, jones_ph] using the framework of [munkres_top].`
	keys := citationKeysInMarkers(text)

	for _, want := range []string{"smith_ph", "jones_ph", "munkres_top"} {
		if !keys[want] {
			t.Errorf("expected %q to be found in markers, got %v", want, keys)
		}
	}
	if len(keys) != 3 {
		t.Errorf("len(keys) = %d, want 3: %v", len(keys), keys)
	}
}

func TestCitationKeysInMarkers_NoMarkers(t *testing.T) {
	keys := citationKeysInMarkers("plain prose with no citations")
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}

func TestGroundPapers_DropsUnmarkedKeys(t *testing.T) {
	marked := citationKeysInMarkers("PH was applied to proteins [smith_ph, jones_ph].")
	papers := []RankedPaper{
		{Key: "smith_ph", Explanation: "applied PH to proteins"},
		{Key: "hallucinated_paper", Explanation: "the model made this up"},
		{Key: "jones_ph", Explanation: "applied PH to proteins"},
	}

	grounded := groundPapers(papers, marked)
	if len(grounded) != 2 {
		t.Fatalf("len(grounded) = %d, want 2: %+v", len(grounded), grounded)
	}
	for _, p := range grounded {
		if p.Key == "hallucinated_paper" {
			t.Error("ungrounded key survived the filter")
		}
	}
}

func TestBuildContexts(t *testing.T) {
	contexts := []core.ParagraphContext{
		{ID: 7, SourceKey: "chen_rev", Text: "PH was applied to proteins [smith_ph]."},
	}
	similarities := map[int64]float64{7: 0.87}

	got := BuildContexts(contexts, similarities)
	if !strings.Contains(got, "from: chen_rev") {
		t.Errorf("context block missing source key: %q", got)
	}
	if !strings.Contains(got, "similarity: 0.87") {
		t.Errorf("context block missing similarity: %q", got)
	}
	if !strings.Contains(got, "[smith_ph]") {
		t.Errorf("context block missing citation marker: %q", got)
	}
}

func TestRender(t *testing.T) {
	result := &Result{
		Papers: []RankedPaper{
			{Key: "smith_ph", Explanation: "Applied persistent homology to protein structures.", CitedBy: []string{"chen_rev"}},
			{Key: "jones_ph", Explanation: "Extended the protein work.", CitedBy: []string{"chen_rev"}},
		},
		Metadata: map[string]core.Paper{
			"smith_ph": {Key: "smith_ph", Title: "PH for Proteins", Authors: "Smith", Year: 2019},
		},
	}

	var b strings.Builder
	Render(&b, result, 10, 80)
	out := b.String()

	if !strings.Contains(out, "2019") || !strings.Contains(out, "PH for Proteins") {
		t.Errorf("rendered output missing metadata header: %q", out)
	}
	if !strings.Contains(out, "jones_ph") {
		t.Errorf("paper without metadata should fall back to its key: %q", out)
	}
	if !strings.Contains(out, "└─ Refs: chen_rev") {
		t.Errorf("rendered output missing Refs line: %q", out)
	}
}

func TestRender_TopKTruncation(t *testing.T) {
	result := &Result{
		Papers: []RankedPaper{
			{Key: "a", Explanation: "first"},
			{Key: "b", Explanation: "second"},
			{Key: "c", Explanation: "third"},
		},
		Metadata: map[string]core.Paper{},
	}

	var b strings.Builder
	Render(&b, result, 2, 80)
	out := b.String()
	if strings.Contains(out, "third") {
		t.Errorf("topK=2 should drop the third paper: %q", out)
	}
}

func TestRender_Empty(t *testing.T) {
	var b strings.Builder
	Render(&b, &Result{}, 10, 80)
	if !strings.Contains(b.String(), "No papers found") {
		t.Errorf("empty result should render the no-papers message, got %q", b.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	for _, line := range lines {
		if len(line) > 9 {
			t.Errorf("line %q exceeds width 9", line)
		}
	}
	if joined := strings.Join(lines, " "); joined != "one two three four five" {
		t.Errorf("wrapping lost words: %q", joined)
	}
}

func TestTruncateToWidth(t *testing.T) {
	if got := truncateToWidth("short", 10); got != "short" {
		t.Errorf("truncateToWidth(short, 10) = %q", got)
	}
	got := truncateToWidth("a very long header line", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateToWidth long = %q", got)
	}
}
