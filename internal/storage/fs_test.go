package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("<en-note>Hello</en-note>")
	if err := s.Write("note.enml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.enml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.enml", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.enml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.enml", []byte("bye"))
	if err := s.Delete("del.enml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.enml"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.enml", []byte("data"))
	if err := s.Move("old.enml", "sub/new.enml"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.enml")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.enml"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.enml", []byte("a"))
	_ = s.Write("sub/b.enml", []byte("b"))
	_ = s.Write("readme.txt", []byte("not a note"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.enml",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("atomic.enml", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.enml", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.enml")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".noteml-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/noteml-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "noteml-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestListSkipsHiddenDirsAndBlobs(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.enml", []byte("<en-note/>"))
	_ = s.Write(".trash/b.enml", []byte("<en-note/>"))
	_ = s.Write("attachments/0123abcd", []byte("blob"))
	_ = s.Write("a.enml.yaml", []byte("id: x\n"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "a.enml" {
		t.Errorf("items = %+v, want only a.enml", items)
	}
}

func TestExists(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("here.enml", []byte("x"))

	ok, err := s.Exists("here.enml")
	if err != nil || !ok {
		t.Errorf("Exists(here.enml) = %v, %v", ok, err)
	}
	ok, err = s.Exists("gone.enml")
	if err != nil || ok {
		t.Errorf("Exists(gone.enml) = %v, %v", ok, err)
	}
	if _, err := s.Exists("../escape.enml"); err == nil {
		t.Error("expected error for traversal")
	}
}
