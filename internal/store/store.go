// Package store persists the identifier ledger and the enriched document
// records in SQLite. The pipeline only touches it through the narrow
// Ledger/Documents interfaces so tests can substitute fakes.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pwjlab/corpus/internal/ledger"
)

// Ledger is the collection interface the orchestrator selects batches from
// and writes step history back to.
type Ledger interface {
	// FindOpen returns up to limit open entries that have not been attempted
	// yet. Entries that already cleared every stage stay open but carry a
	// full step history, so an empty history is what marks work as pending.
	// No ordering is guaranteed beyond the filter.
	FindOpen(limit int) ([]ledger.Entry, error)
	// UpdateEntry overwrites the closed flag and step history of an existing
	// entry. Other fields are untouched.
	UpdateEntry(e ledger.Entry) error
}

// Documents is the insert-only document collection interface. Records gain
// created_at/updated_at stamps from the store, not the caller.
type Documents interface {
	InsertDocument(doc *ledger.Document) error
}

// Store wraps a SQLite database holding both collections.
type Store struct {
	db *sql.DB
}

var _ Ledger = (*Store)(nil)
var _ Documents = (*Store)(nil)

// Open opens or creates the corpus database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS register (
			id TEXT PRIMARY KEY,
			closed INTEGER NOT NULL DEFAULT 0,
			steps_json TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_register_closed ON register(closed);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			metadata_json TEXT,
			full_text TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// RegisterID inserts a new open ledger entry with an empty step history.
// Returns false if the identifier is already registered.
func (s *Store) RegisterID(id string) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO register (id, closed, steps_json) VALUES (?, 0, '[]')
	`, id)
	if err != nil {
		return false, fmt.Errorf("registering %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindOpen returns up to limit open, not-yet-attempted entries.
func (s *Store) FindOpen(limit int) ([]ledger.Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, closed, steps_json
		FROM register
		WHERE closed = 0 AND steps_json = '[]'
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying open entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetEntry returns a single ledger entry by identifier.
func (s *Store) GetEntry(id string) (*ledger.Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, closed, steps_json FROM register WHERE id = ?
	`, id)

	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ledger entry %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEntry overwrites the closed flag and steps of an existing entry.
func (s *Store) UpdateEntry(e ledger.Entry) error {
	steps, err := json.Marshal(e.Steps)
	if err != nil {
		return fmt.Errorf("encoding steps for %s: %w", e.ID, err)
	}

	res, err := s.db.Exec(`
		UPDATE register SET closed = ?, steps_json = ? WHERE id = ?
	`, boolToInt(e.Closed), string(steps), e.ID)
	if err != nil {
		return fmt.Errorf("updating entry %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ledger entry %s not found", e.ID)
	}
	return nil
}

// InsertDocument inserts a new document record, stamping created_at and
// updated_at. Inserting the same identifier twice is an error: one record
// per successful identifier, ever.
func (s *Store) InsertDocument(doc *ledger.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	var metadata any
	if len(doc.Metadata) > 0 {
		metadata = string(doc.Metadata)
	}

	_, err := s.db.Exec(`
		INSERT INTO documents (id, metadata_json, full_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, metadata, doc.FullText, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document record by identifier, or nil if absent.
func (s *Store) GetDocument(id string) (*ledger.Document, error) {
	row := s.db.QueryRow(`
		SELECT id, metadata_json, full_text, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	var doc ledger.Document
	var metadata, fullText sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&doc.ID, &metadata, &fullText, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}

	if metadata.Valid {
		doc.Metadata = json.RawMessage(metadata.String)
	}
	if fullText.Valid {
		doc.FullText = fullText.String
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", id, err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", id, err)
	}
	return &doc, nil
}

// SuccessfulDocuments returns every persisted document record.
func (s *Store) SuccessfulDocuments() ([]ledger.Document, error) {
	rows, err := s.db.Query(`
		SELECT id, metadata_json, full_text FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []ledger.Document
	for rows.Next() {
		var doc ledger.Document
		var metadata, fullText sql.NullString
		if err := rows.Scan(&doc.ID, &metadata, &fullText); err != nil {
			return nil, err
		}
		if metadata.Valid {
			doc.Metadata = json.RawMessage(metadata.String)
		}
		if fullText.Valid {
			doc.FullText = fullText.String
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Counts summarizes the ledger and document collections, used by the store
// check command to spot drift between closed entries and stored documents.
type Counts struct {
	Total     int `json:"total"`
	Open      int `json:"open"`
	Closed    int `json:"closed"`
	Documents int `json:"documents"`
}

// Count returns ledger and document totals.
func (s *Store) Count() (Counts, error) {
	var c Counts
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(closed = 0), 0), COALESCE(SUM(closed = 1), 0)
		FROM register
	`).Scan(&c.Total, &c.Open, &c.Closed)
	if err != nil {
		return c, fmt.Errorf("counting register: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&c.Documents); err != nil {
		return c, fmt.Errorf("counting documents: %w", err)
	}
	return c, nil
}

func scanEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(...any) error) (ledger.Entry, error) {
	var e ledger.Entry
	var closed int
	var steps string
	if err := scan(&e.ID, &closed, &steps); err != nil {
		return e, err
	}
	e.Closed = closed != 0
	if err := json.Unmarshal([]byte(steps), &e.Steps); err != nil {
		return e, fmt.Errorf("decoding steps for %s: %w", e.ID, err)
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
