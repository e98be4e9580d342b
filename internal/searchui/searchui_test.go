package searchui

import (
	"strings"
	"testing"

	"bib/internal/core"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeStore struct {
	touched []string
}

func (f *fakeStore) Touch(key string) (bool, error) {
	f.touched = append(f.touched, key)
	return true, nil
}

func samplePapers() []core.Paper {
	return []core.Paper{
		{Key: "smith_ph", Title: "PH for Proteins", Authors: "Smith", Year: 2019, Processed: true},
		{Key: "jones_graphs", Title: "Graph Methods", Authors: "Jones", Year: 2020, Link: "https://example.com"},
		{Key: "lee_nets", Title: "Neural Networks", Authors: "Lee", Year: 2021},
	}
}

func TestRefilter_EmptyQueryKeepsStoreOrder(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())
	if len(m.filtered) != 3 {
		t.Fatalf("len(filtered) = %d, want 3", len(m.filtered))
	}
	for i, idx := range m.filtered {
		if idx != i {
			t.Errorf("filtered[%d] = %d, want store order preserved", i, idx)
		}
	}
}

func TestRefilter_EmptyQueryRespectsLimit(t *testing.T) {
	papers := make([]core.Paper, DefaultLimit+50)
	for i := range papers {
		papers[i] = core.Paper{Key: "k", Title: "t"}
	}
	m := New(&fakeStore{}, t.TempDir(), papers)
	if len(m.filtered) != DefaultLimit {
		t.Errorf("len(filtered) = %d, want %d", len(m.filtered), DefaultLimit)
	}
}

func TestRefilter_FuzzyMatchesAuthorAndTitle(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())
	m.query = "smith"
	m.refilter()

	if len(m.filtered) != 1 {
		t.Fatalf("len(filtered) = %d, want 1: %v", len(m.filtered), m.filtered)
	}
	if m.snapshot[m.filtered[0]].Key != "smith_ph" {
		t.Errorf("matched %q, want smith_ph", m.snapshot[m.filtered[0]].Key)
	}
}

func TestUpdate_SearchTypingRefilters(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("graph")})
	got := updated.(model)
	if got.query != "graph" {
		t.Errorf("query = %q, want graph", got.query)
	}
	if len(got.filtered) != 1 || got.snapshot[got.filtered[0]].Key != "jones_graphs" {
		t.Errorf("filtered = %v", got.filtered)
	}
}

func TestUpdate_ModeTransitions(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	browse := updated.(model)
	if browse.mode != modeBrowse {
		t.Fatal("Tab in search mode should enter browse mode")
	}

	updated, _ = browse.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'\\'}})
	back := updated.(model)
	if back.mode != modeSearch {
		t.Error("backslash in browse mode should return to search mode")
	}
}

func TestUpdate_BrowseCursorMovement(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())
	m.mode = modeBrowse

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	down := updated.(model)
	if down.cursor != 1 {
		t.Errorf("cursor after j = %d, want 1", down.cursor)
	}

	updated, _ = down.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	up := updated.(model)
	if up.cursor != 0 {
		t.Errorf("cursor after k = %d, want 0", up.cursor)
	}

	// k at the top stays put.
	updated, _ = up.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if updated.(model).cursor != 0 {
		t.Error("cursor should not move above the first row")
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	m := New(&fakeStore{}, t.TempDir(), samplePapers())
	m.mode = modeBrowse

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !updated.(model).quitting {
		t.Error("q in browse mode should quit")
	}
	if cmd == nil {
		t.Error("quit should return the tea.Quit command")
	}
}

func TestOpen_NoLinkFlashesError(t *testing.T) {
	st := &fakeStore{}
	m := New(st, t.TempDir(), []core.Paper{{Key: "lee_nets", Title: "Neural Networks"}})
	m.mode = modeBrowse

	updated, _ := m.open()
	got := updated.(model)
	if got.flashKind != flashError {
		t.Error("opening a paper with no PDF and no link should flash an error")
	}
	if len(st.touched) != 0 {
		t.Errorf("failed open should not touch the paper, touched %v", st.touched)
	}
}

func TestPull_UnprocessedFlashesError(t *testing.T) {
	st := &fakeStore{}
	m := New(st, t.TempDir(), []core.Paper{{Key: "lee_nets"}})
	m.mode = modeBrowse

	updated, _ := m.pull()
	got := updated.(model)
	if got.flashKind != flashError {
		t.Error("pulling an unprocessed paper should flash an error")
	}
	if len(st.touched) != 0 {
		t.Errorf("failed pull should not touch the paper, touched %v", st.touched)
	}
}

func TestFormatRow(t *testing.T) {
	row := formatRow(core.Paper{Key: "smith_ph", Title: "PH for Proteins", Authors: "Smith, Jones", Year: 2019})
	if !strings.Contains(row, "2019") || !strings.Contains(row, "Smith and Jones") || !strings.Contains(row, "PH for Proteins") {
		t.Errorf("formatRow = %q", row)
	}

	empty := formatRow(core.Paper{Key: "x"})
	if !strings.Contains(empty, "----") || !strings.Contains(empty, "Untitled") {
		t.Errorf("formatRow of empty paper = %q", empty)
	}
}
