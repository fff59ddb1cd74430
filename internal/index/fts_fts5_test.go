//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	d := doc("fts.enml", "f1", "Noteml provides powerful full-text search capabilities.")
	d.Note.Title = "FTS Note"
	d.Note.Tags = []string{"search"}
	if err := db.UpsertNote(d); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.enml" {
		t.Errorf("path = %q", results[0].Path)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(doc("gone.enml", "g", "vanishing content"))
	_ = db.DeleteNote("gone.enml")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.enml" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	old := doc("evo.enml", "1", "original text")
	old.Note.Title = "Old"
	_ = db.UpsertNote(old)
	repl := doc("evo.enml", "2", "replacement text")
	repl.Note.Title = "New"
	_ = db.UpsertNote(repl)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
