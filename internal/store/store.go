// Package store persists the citation graph in a single SQLite file: every
// paper the system has heard of (whether ingested directly or only seen in
// a bibliography), every paragraph extracted from an ingested paper, and
// every paragraph-to-cited-paper edge. Upserts are non-destructive: a
// paper's known fields only ever improve as more sources mention it.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bib/internal/core"
)

// Store is the SQLite-backed CitationStore.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if necessary) and opens the database file at dataDir/bib.db,
// creating the schema and applying the store's pragmas.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "bib.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.setPragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setPragmas() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -64000;
		PRAGMA temp_store = MEMORY;
	`)
	return err
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS papers (
			key TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			year INTEGER,
			link TEXT,
			last_touched INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS processed (
			key TEXT PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS paragraphs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_key TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS paragraph_citations (
			paragraph_id INTEGER NOT NULL,
			cited_key TEXT NOT NULL,
			FOREIGN KEY (paragraph_id) REFERENCES paragraphs(id)
		);

		CREATE INDEX IF NOT EXISTS idx_paragraphs_source ON paragraphs(source_key);
		CREATE INDEX IF NOT EXISTS idx_paragraph_citations_paragraph ON paragraph_citations(paragraph_id);
		CREATE INDEX IF NOT EXISTS idx_paragraph_citations_cited ON paragraph_citations(cited_key);
	`)
	return err
}

// IsProcessed reports whether key has already been ingested from a PDF.
func (s *Store) IsProcessed(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM processed WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking processed status for %q: %w", key, err)
	}
	return exists, nil
}

// Ingest stores an embedded paper's metadata, its bibliography, and its
// paragraphs in a single transaction. Ingesting the same source key twice
// replaces its paragraphs and citation edges, so re-running add on an
// already-processed PDF never duplicates rows.
func (s *Store) Ingest(paper core.EmbeddedPaper) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	sourceYear := parseYear(paper.Year)
	if err := upsertSourcePaper(tx, paper.Key, paper.Title, paper.Authors, sourceYear, now); err != nil {
		return fmt.Errorf("upserting source paper %q: %w", paper.Key, err)
	}

	for _, ref := range paper.References {
		year := parseYear(ref.Year)
		if err := upsertReference(tx, ref.Key, ref.Title, ref.Authors, year, ref.Link, now); err != nil {
			return fmt.Errorf("upserting reference %q: %w", ref.Key, err)
		}
	}

	if err := deleteParagraphs(tx, paper.Key); err != nil {
		return fmt.Errorf("clearing existing paragraphs for %q: %w", paper.Key, err)
	}

	for _, para := range paper.Paragraphs {
		blob := embeddingToBlob(para.Embedding)

		res, err := tx.Exec(
			`INSERT INTO paragraphs (source_key, text, embedding) VALUES (?, ?, ?)`,
			paper.Key, para.Text, blob,
		)
		if err != nil {
			return fmt.Errorf("inserting paragraph: %w", err)
		}
		paragraphID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading paragraph id: %w", err)
		}

		for _, citedKey := range para.CitedKeys {
			if _, err := tx.Exec(
				`INSERT INTO paragraph_citations (paragraph_id, cited_key) VALUES (?, ?)`,
				paragraphID, citedKey,
			); err != nil {
				return fmt.Errorf("inserting citation edge: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO processed (key) VALUES (?)`, paper.Key); err != nil {
		return fmt.Errorf("marking %q processed: %w", paper.Key, err)
	}

	return tx.Commit()
}

// deleteParagraphs removes every paragraph (and its citation edges)
// previously ingested for sourceKey, making Ingest idempotent.
func deleteParagraphs(tx *sql.Tx, sourceKey string) error {
	rows, err := tx.Query(`SELECT id FROM paragraphs WHERE source_key = ?`, sourceKey)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM paragraph_citations WHERE paragraph_id = ?`, id); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM paragraphs WHERE source_key = ?`, sourceKey); err != nil {
		return err
	}
	return nil
}

// upsertSourcePaper inserts or merges a paper we have an ingested PDF for.
// Its link is always cleared: a local PDF supersedes any remembered URL.
func upsertSourcePaper(tx *sql.Tx, key, title, authors string, year *int, now int64) error {
	titleArg := nullableString(title)
	authorsArg := nullableString(authors)

	_, err := tx.Exec(`
		INSERT INTO papers (key, title, authors, year, link, last_touched)
		VALUES (?, ?, ?, ?, NULL, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = COALESCE(excluded.title, papers.title),
			authors = COALESCE(excluded.authors, papers.authors),
			year = COALESCE(excluded.year, papers.year),
			link = NULL,
			last_touched = excluded.last_touched
	`, key, titleArg, authorsArg, year, now)
	return err
}

// upsertReference inserts or merges a paper known only from a bibliography
// entry. Its link is only updated while the paper has not itself been
// processed from a PDF; a processed paper keeps whatever link it already
// has (or none), since the PDF is the more authoritative source.
func upsertReference(tx *sql.Tx, key, title, authors string, year *int, link string, now int64) error {
	titleArg := nullableString(title)
	authorsArg := nullableString(authors)
	linkArg := nullableString(link)

	_, err := tx.Exec(`
		INSERT INTO papers (key, title, authors, year, link, last_touched)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = COALESCE(excluded.title, papers.title),
			authors = COALESCE(excluded.authors, papers.authors),
			year = COALESCE(excluded.year, papers.year),
			link = CASE
				WHEN (SELECT 1 FROM processed WHERE key = excluded.key) IS NULL
				THEN COALESCE(excluded.link, papers.link)
				ELSE papers.link
			END,
			last_touched = excluded.last_touched
	`, key, titleArg, authorsArg, year, linkArg, now)
	return err
}

// GetAllEmbeddings returns every paragraph's id and embedding vector, with
// no text loaded, for the similarity scan's first pass.
func (s *Store) GetAllEmbeddings() ([]core.ParagraphEmbedding, error) {
	rows, err := s.db.Query(`SELECT id, embedding FROM paragraphs`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []core.ParagraphEmbedding
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		out = append(out, core.ParagraphEmbedding{ID: id, Embedding: blobToEmbedding(blob)})
	}
	return out, rows.Err()
}

// GetParagraphContexts loads the full text and citation edges for a set of
// paragraph ids, for handing to the reranker once they have survived the
// similarity cutoff.
func (s *Store) GetParagraphContexts(ids []int64) ([]core.ParagraphContext, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, source_key, text FROM paragraphs WHERE id IN (%s)`, placeholders)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying paragraph contexts: %w", err)
	}

	var out []core.ParagraphContext
	for rows.Next() {
		var ctx core.ParagraphContext
		if err := rows.Scan(&ctx.ID, &ctx.SourceKey, &ctx.Text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning paragraph context: %w", err)
		}
		out = append(out, ctx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		citeRows, err := s.db.Query(`SELECT cited_key FROM paragraph_citations WHERE paragraph_id = ?`, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("querying citations for paragraph %d: %w", out[i].ID, err)
		}
		for citeRows.Next() {
			var key string
			if err := citeRows.Scan(&key); err != nil {
				citeRows.Close()
				return nil, fmt.Errorf("scanning citation key: %w", err)
			}
			out[i].CitedKeys = append(out[i].CitedKeys, key)
		}
		err = citeRows.Err()
		citeRows.Close()
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// GetPapers returns papers by key, or every known paper when keys is empty.
// When processedOnly is true, only papers ingested from a PDF are returned.
// Results are ordered by most-recently-touched first.
func (s *Store) GetPapers(keys []string, processedOnly bool) ([]core.Paper, error) {
	const base = `
		SELECT p.key, p.title, p.authors, p.year, p.link,
			(pr.key IS NOT NULL) AS processed, p.last_touched
		FROM papers p
		LEFT JOIN processed pr ON p.key = pr.key`

	var rows *sql.Rows
	var err error

	switch {
	case len(keys) == 0 && processedOnly:
		rows, err = s.db.Query(base + ` WHERE pr.key IS NOT NULL ORDER BY p.last_touched DESC`)
	case len(keys) == 0:
		rows, err = s.db.Query(base + ` ORDER BY p.last_touched DESC`)
	default:
		placeholders := make([]byte, 0, len(keys)*2)
		args := make([]any, len(keys))
		for i, k := range keys {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args[i] = k
		}
		query := base + fmt.Sprintf(` WHERE p.key IN (%s) ORDER BY p.last_touched DESC`, placeholders)
		rows, err = s.db.Query(query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var out []core.Paper
	for rows.Next() {
		var p core.Paper
		var title, authors, link sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&p.Key, &title, &authors, &year, &link, &p.Processed, &p.LastTouched); err != nil {
			return nil, fmt.Errorf("scanning paper row: %w", err)
		}
		p.Title = title.String
		p.Authors = authors.String
		p.Link = link.String
		p.Year = int(year.Int64)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Touch updates a paper's last_touched timestamp to now, reporting whether
// a matching row existed.
func (s *Store) Touch(key string) (bool, error) {
	res, err := s.db.Exec(`UPDATE papers SET last_touched = ? WHERE key = ?`, time.Now().Unix(), key)
	if err != nil {
		return false, fmt.Errorf("touching paper %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats reports overall store size.
func (s *Store) Stats() (core.Stats, error) {
	var stats core.Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM papers`).Scan(&stats.PaperCount); err != nil {
		return stats, fmt.Errorf("counting papers: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM paragraphs`).Scan(&stats.ParagraphCount); err != nil {
		return stats, fmt.Errorf("counting paragraphs: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM paragraph_citations`).Scan(&stats.CitationCount); err != nil {
		return stats, fmt.Errorf("counting citations: %w", err)
	}
	return stats, nil
}

// FormatAuthors renders a comma-joined author string for display: a single
// name is shown bare, two are joined with "and", three or more are
// collapsed to "First et al."
func FormatAuthors(authors string) string {
	if authors == "" {
		return "Unknown"
	}
	names := splitAuthors(authors)
	switch len(names) {
	case 0:
		return "Unknown"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return names[0] + " et al."
	}
}

func splitAuthors(authors string) []string {
	var names []string
	start := 0
	for i := 0; i+1 < len(authors); i++ {
		if authors[i] == ',' && authors[i+1] == ' ' {
			names = append(names, authors[start:i])
			start = i + 2
			i++
		}
	}
	names = append(names, authors[start:])
	return names
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseYear(year string) *int {
	if year == "" {
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(year, "%d", &n); err != nil {
		return nil
	}
	return &n
}

// embeddingToBlob packs a float32 vector into a little-endian byte slice.
func embeddingToBlob(embedding []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(embedding) * 4)
	for _, v := range embedding {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// blobToEmbedding unpacks a little-endian byte slice into a float32 vector.
func blobToEmbedding(blob []byte) []float32 {
	n := len(blob) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
