// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/noteml/internal/index"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/storage"
	"github.com/starford/noteml/internal/vault"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "noteml-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a bundle store.
func TestVault(t *testing.T) (string, *vault.Store) {
	t.Helper()
	vaultDir := t.TempDir()
	files, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, vault.New(files)
}

// PNG is a minimal PNG signature followed by payload bytes, enough for
// content sniffing.
func PNG(payload string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), payload...)
}

// Media returns a media tag referencing r.
func Media(r *models.Resource) string {
	return `<en-media type="` + r.Mime + `" hash="` + r.Hash() + `"/>`
}

// SaveNote writes note to store, records its checksum and indexes it.
func SaveNote(t *testing.T, store *vault.Store, db *index.DB, note *models.Note) {
	t.Helper()
	cs, err := store.Save(note)
	if err != nil {
		t.Fatalf("save %s: %v", note.Path, err)
	}
	note.Checksum = cs
	if _, err := index.IndexNote(db, store, note.Path); err != nil {
		t.Fatalf("index %s: %v", note.Path, err)
	}
}
