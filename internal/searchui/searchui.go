// Package searchui is the modal terminal browser over a read-only snapshot
// of the citation store: a Search mode for fuzzy-filtering the paper list
// and a Browse mode for opening, pulling, or touching the selected paper.
package searchui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bib/internal/core"
	"bib/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/sahilm/fuzzy"
)

// mode is the UI's two-state state machine.
type mode int

const (
	modeSearch mode = iota
	modeBrowse
)

// DefaultLimit caps how many rows an empty query shows in Browse mode.
const DefaultLimit = 200

// Store is the subset of internal/store.Store the UI needs.
type Store interface {
	Touch(key string) (bool, error)
}

// flashKind distinguishes a success flash from an error flash for styling.
type flashKind int

const (
	flashNone flashKind = iota
	flashSuccess
	flashError
)

// model is the bubbletea model backing the search/browse UI.
type model struct {
	store  Store
	pdfDir string

	snapshot []core.Paper
	filtered []int // indices into snapshot, in display order

	mode        mode
	query       string
	cursor      int
	width       int
	height      int
	quitting    bool
	flashText   string
	flashKind   flashKind
	flashExpiry time.Time
}

// New returns the initial model for a read-only snapshot of papers.
func New(st Store, pdfDir string, snapshot []core.Paper) model {
	m := model{
		store:    st,
		pdfDir:   pdfDir,
		snapshot: snapshot,
		mode:     modeSearch,
	}
	m.refilter()
	return m
}

// Run starts the bubbletea program over m.
func Run(st Store, pdfDir string, snapshot []core.Paper) error {
	p := tea.NewProgram(New(st, pdfDir, snapshot))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return nil
}

// flashExpiredMsg clears an expired flash message.
type flashExpiredMsg struct{}

func clearFlashAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return flashExpiredMsg{} })
}

func (m *model) setFlash(kind flashKind, text string) tea.Cmd {
	m.flashKind = kind
	m.flashText = text
	m.flashExpiry = time.Now().Add(2500 * time.Millisecond)
	return clearFlashAfter(2500 * time.Millisecond)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case flashExpiredMsg:
		if time.Now().After(m.flashExpiry) || m.flashExpiry.IsZero() {
			m.flashKind = flashNone
			m.flashText = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeBrowse:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter, tea.KeyTab:
		m.mode = modeBrowse
		m.cursor = 0
		return m, nil
	case tea.KeyBackspace:
		if len(m.query) > 0 {
			m.query = m.query[:len(m.query)-1]
			m.refilter()
		}
		return m, nil
	case tea.KeyRunes:
		m.query += string(msg.Runes)
		m.refilter()
		return m, nil
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.quitting = true
		return m, tea.Quit
	case "tab", "\\":
		m.mode = modeSearch
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		return m.open()
	case "p":
		return m.pull()
	}
	return m, nil
}

// refilter recomputes m.filtered from m.query: a fuzzy match of the query
// against "authors ‖ title" for each paper, or the first DefaultLimit rows
// in store order when the query is empty.
func (m *model) refilter() {
	if m.query == "" {
		n := len(m.snapshot)
		if n > DefaultLimit {
			n = DefaultLimit
		}
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		m.filtered = idx
		m.cursor = 0
		return
	}

	haystack := make([]string, len(m.snapshot))
	for i, p := range m.snapshot {
		haystack[i] = p.Authors + " ‖ " + p.Title
	}

	matches := fuzzy.Find(m.query, haystack)
	idx := make([]int, len(matches))
	for i, match := range matches {
		idx[i] = match.Index
	}
	m.filtered = idx
	m.cursor = 0
}

func (m model) selectedPaper() (core.Paper, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return core.Paper{}, false
	}
	return m.snapshot[m.filtered[m.cursor]], true
}

// open touches the selected paper and opens it: a file:// URL to its PDF if
// processed, otherwise its bibliography link.
func (m model) open() (tea.Model, tea.Cmd) {
	paper, ok := m.selectedPaper()
	if !ok {
		return m, nil
	}

	var url string
	if paper.Processed {
		path := filepath.Join(m.pdfDir, paper.Key+".pdf")
		if _, err := os.Stat(path); err != nil {
			cmd := m.setFlash(flashError, fmt.Sprintf("PDF not found: %s", path))
			return m, cmd
		}
		url = "file://" + path
	} else {
		if paper.Link == "" {
			cmd := m.setFlash(flashError, "no link available for this paper")
			return m, cmd
		}
		url = paper.Link
	}

	if err := browser.OpenURL(url); err != nil {
		cmd := m.setFlash(flashError, fmt.Sprintf("failed to open: %v", err))
		return m, cmd
	}
	if _, err := m.store.Touch(paper.Key); err != nil {
		cmd := m.setFlash(flashError, err.Error())
		return m, cmd
	}
	cmd := m.setFlash(flashSuccess, "opened "+paper.Key)
	return m, cmd
}

// pull copies <pdf_dir>/<key>.pdf into the current working directory and
// touches the paper.
func (m model) pull() (tea.Model, tea.Cmd) {
	paper, ok := m.selectedPaper()
	if !ok || !paper.Processed {
		cmd := m.setFlash(flashError, "paper has no stored PDF to pull")
		return m, cmd
	}

	src := filepath.Join(m.pdfDir, paper.Key+".pdf")
	data, err := os.ReadFile(src)
	if err != nil {
		cmd := m.setFlash(flashError, fmt.Sprintf("PDF not found: %s", src))
		return m, cmd
	}

	cwd, err := os.Getwd()
	if err != nil {
		cmd := m.setFlash(flashError, err.Error())
		return m, cmd
	}
	dst := filepath.Join(cwd, paper.Key+".pdf")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		cmd := m.setFlash(flashError, err.Error())
		return m, cmd
	}

	if _, err := m.store.Touch(paper.Key); err != nil {
		cmd := m.setFlash(flashError, err.Error())
		return m, cmd
	}
	cmd := m.setFlash(flashSuccess, "pulled "+paper.Key+".pdf")
	return m, cmd
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b string
	switch m.mode {
	case modeSearch:
		b = titleStyle.Render("bib search") + "\n\n"
		b += "> " + m.query + "█\n\n"
		b += mutedStyle.Render(fmt.Sprintf("%d matches — Enter/Tab to browse, Esc to quit", len(m.filtered)))
	case modeBrowse:
		b = titleStyle.Render("bib browse") + "\n\n"
		for i, idx := range m.filtered {
			p := m.snapshot[idx]
			line := formatRow(p)
			if i == m.cursor {
				b += selectedStyle.Render("> "+line) + "\n"
			} else {
				b += normalStyle.Render("  "+line) + "\n"
			}
		}
		b += "\n" + mutedStyle.Render("j/k move, Enter open, p pull, Tab search, q quit")
	}

	if m.flashText != "" {
		style := successStyle
		if m.flashKind == flashError {
			style = errorStyle
		}
		b += "\n\n" + style.Render(m.flashText)
	}

	return b
}

func formatRow(p core.Paper) string {
	year := "----"
	if p.Year != 0 {
		year = fmt.Sprintf("%d", p.Year)
	}
	authors := store.FormatAuthors(p.Authors)
	title := p.Title
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf("%s %s • %s", year, authors, title)
}
