package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/noteml/internal/apperr"
	"github.com/starford/noteml/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path          string
	ID            string
	Title         string
	Checksum      string
	Tags          []string
	ResourceCount int
	TodoTotal     int
	TodoDone      int
	UpdatedAt     time.Time
}

// Summary converts the row for API output.
func (r NoteRow) Summary() models.NoteSummary {
	return models.NoteSummary{
		Path:          r.Path,
		ID:            r.ID,
		Title:         r.Title,
		ResourceCount: r.ResourceCount,
		TodoCount:     r.TodoTotal,
		TodoDone:      r.TodoDone,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ResourceRow is one manifest entry of an indexed note.
type ResourceRow struct {
	ID       string
	Hash     string
	Mime     string
	FileName string
}

// Document is everything indexed for a single note.
type Document struct {
	Note      NoteRow
	Body      string
	Links     []string
	Resources []ResourceRow
	// MediaRefs lists media tag hashes in document order.
	MediaRefs []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertNote replaces everything stored for a note within a transaction.
func (db *DB) UpsertNote(doc Document) error {
	n := doc.Note
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, note_id, title, checksum, tags, body, resource_count, todo_total, todo_done, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			note_id        = excluded.note_id,
			title          = excluded.title,
			checksum       = excluded.checksum,
			tags           = excluded.tags,
			body           = excluded.body,
			resource_count = excluded.resource_count,
			todo_total     = excluded.todo_total,
			todo_done      = excluded.todo_done,
			updated_at     = excluded.updated_at
	`, n.Path, n.ID, n.Title, n.Checksum, string(tagsJSON), doc.Body,
		len(doc.Resources), n.TodoTotal, n.TodoDone, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, doc.Body, tags); err != nil {
		return err
	}

	if err := replaceChildren(tx, n.Path, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceChildren(tx *sql.Tx, path string, doc Document) error {
	for _, q := range []string{
		`DELETE FROM links WHERE source = ?`,
		`DELETE FROM resources WHERE note_path = ?`,
		`DELETE FROM media_refs WHERE note_path = ?`,
	} {
		if _, err := tx.Exec(q, path); err != nil {
			return fmt.Errorf("index: clear children: %w", err)
		}
	}

	if len(doc.Links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range doc.Links {
			if _, err := stmt.Exec(path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if len(doc.Resources) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO resources (note_path, position, resource_id, hash, mime, file_name) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare resource insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range doc.Resources {
			if _, err := stmt.Exec(path, i, r.ID, r.Hash, r.Mime, r.FileName); err != nil {
				return fmt.Errorf("index: insert resource: %w", err)
			}
		}
	}

	if len(doc.MediaRefs) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO media_refs (note_path, position, hash) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare media ref insert: %w", err)
		}
		defer stmt.Close()
		for i, h := range doc.MediaRefs {
			if _, err := stmt.Exec(path, i, h); err != nil {
				return fmt.Errorf("index: insert media ref: %w", err)
			}
		}
	}
	return nil
}

// DeleteNote removes a note and everything attached to it.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM resources WHERE note_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM media_refs WHERE note_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const noteColumns = `path, note_id, title, checksum, tags, resource_count, todo_total, todo_done, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (NoteRow, error) {
	var (
		r    NoteRow
		tags string
	)
	if err := s.Scan(&r.Path, &r.ID, &r.Title, &r.Checksum, &tags, &r.ResourceCount, &r.TodoTotal, &r.TodoDone, &r.UpdatedAt); err != nil {
		return NoteRow{}, err
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	return r, nil
}

// GetNote returns the indexed row of a note.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	r, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &r, nil
}

// ListNotes returns a page of notes and the total count. tag filters on
// an exact tag; sort is one of "path", "title" or "updated".
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "path"
	switch sort {
	case "title":
		order = "title COLLATE NOCASE, path"
	case "updated":
		order = "updated_at DESC, path"
	}

	where := ""
	var args []any
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		r, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns all note paths that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	return db.strings(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
}

// NotesUsingHash returns the notes that reference or attach a payload.
func (db *DB) NotesUsingHash(hash string) ([]string, error) {
	return db.strings(`
		SELECT note_path FROM media_refs WHERE hash = ?
		UNION
		SELECT note_path FROM resources WHERE hash = ?
		ORDER BY 1
	`, hash, hash)
}

// Integrity compares media references and resources of an indexed note.
func (db *DB) Integrity(path string) (models.Integrity, error) {
	if _, err := db.GetNote(path); err != nil {
		return models.Integrity{}, err
	}
	dangling, err := db.strings(`
		SELECT DISTINCT m.hash FROM media_refs m
		WHERE m.note_path = ?
		  AND NOT EXISTS (SELECT 1 FROM resources r WHERE r.note_path = m.note_path AND r.hash = m.hash)
		ORDER BY m.hash
	`, path)
	if err != nil {
		return models.Integrity{}, err
	}
	orphans, err := db.strings(`
		SELECT DISTINCT r.hash FROM resources r
		WHERE r.note_path = ?
		  AND NOT EXISTS (SELECT 1 FROM media_refs m WHERE m.note_path = r.note_path AND m.hash = r.hash)
		ORDER BY r.hash
	`, path)
	if err != nil {
		return models.Integrity{}, err
	}
	return models.Integrity{Path: path, Dangling: nonNil(dangling), Orphans: nonNil(orphans)}, nil
}

// BrokenNotes returns the paths of notes whose references and resources
// disagree.
func (db *DB) BrokenNotes() ([]string, error) {
	return db.strings(`
		SELECT m.note_path FROM media_refs m
		WHERE NOT EXISTS (SELECT 1 FROM resources r WHERE r.note_path = m.note_path AND r.hash = m.hash)
		UNION
		SELECT r.note_path FROM resources r
		WHERE NOT EXISTS (SELECT 1 FROM media_refs m WHERE m.note_path = r.note_path AND m.hash = r.hash)
		ORDER BY 1
	`)
}

func (db *DB) strings(query string, args ...any) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query %s: %w", firstWords(query), err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func firstWords(q string) string {
	f := strings.Fields(q)
	if len(f) > 4 {
		f = f[:4]
	}
	return strings.Join(f, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
