package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/noteml/internal/apperr"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/storage"
)

func tempStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(fs), fs
}

func sample() *models.Note {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	img := &models.Resource{ID: "r-img", Mime: "image/png", FileName: "a.png", Data: []byte("png")}
	return &models.Note{
		ID:        "n-1",
		Path:      "work/plan.enml",
		Title:     "Plan",
		Tags:      []string{"work"},
		Content:   `<en-note><en-media type="image/png" hash="` + img.Hash() + `"/></en-note>`,
		Resources: []*models.Resource{img},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, _ := tempStore(t)
	n := sample()

	cs, err := s.Save(n)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(n.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "n-1" || got.Title != "Plan" || got.Content != n.Content {
		t.Errorf("loaded = %+v", got)
	}
	if got.Checksum != cs {
		t.Errorf("checksum = %s, want %s", got.Checksum, cs)
	}
	if len(got.Resources) != 1 || string(got.Resources[0].Data) != "png" || got.Resources[0].FileName != "a.png" {
		t.Errorf("resources = %+v", got.Resources)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestBlobsAreShared(t *testing.T) {
	s, fs := tempStore(t)
	a := sample()
	b := sample()
	b.Path = "other.enml"
	if _, err := s.Save(a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(b); err != nil {
		t.Fatal(err)
	}
	ok, err := fs.Exists(BlobPath(a.Resources[0].Hash()))
	if err != nil || !ok {
		t.Errorf("blob missing: %v %v", ok, err)
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	s, fs := tempStore(t)
	_ = fs.Write("bare.enml", []byte("<en-note>hi</en-note>"))

	n, err := s.Load("bare.enml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n.Content != "<en-note>hi</en-note>" || len(n.Resources) != 0 {
		t.Errorf("note = %+v", n)
	}
}

func TestLoadMissing(t *testing.T) {
	s, _ := tempStore(t)
	_, err := s.Load("nope.enml")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCorruptBlob(t *testing.T) {
	s, fs := tempStore(t)
	n := sample()
	if _, err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	_ = fs.Write(BlobPath(n.Resources[0].Hash()), []byte("tampered"))

	if _, err := s.Load(n.Path); !errors.Is(err, ErrCorruptBlob) {
		t.Errorf("err = %v, want ErrCorruptBlob", err)
	}
}

func TestReadBlobRejectsBadHash(t *testing.T) {
	s, _ := tempStore(t)
	for _, h := range []string{"", "../secret", "ABCDEF0123456789ABCDEF0123456789", "zz"} {
		if _, err := s.ReadBlob(h); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("ReadBlob(%q) err = %v", h, err)
		}
	}
}

func TestMoveAndDelete(t *testing.T) {
	s, fs := tempStore(t)
	n := sample()
	if _, err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	if err := s.Move(n.Path, "archive/plan.enml"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if ok, _ := fs.Exists(ManifestPath("archive/plan.enml")); !ok {
		t.Error("manifest not moved")
	}
	if err := s.Move("missing.enml", "x.enml"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Move missing err = %v", err)
	}

	if err := s.Delete("archive/plan.enml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists("archive/plan.enml"); ok {
		t.Error("note still exists")
	}
	if err := s.Delete("archive/plan.enml"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestListChecksumCoversManifest(t *testing.T) {
	s, _ := tempStore(t)
	n := sample()
	if _, err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	before, _ := s.List()

	n.Title = "Renamed"
	if _, err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	after, _ := s.List()

	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("list sizes = %d, %d", len(before), len(after))
	}
	if before[0].Checksum == after[0].Checksum {
		t.Error("manifest change did not change the checksum")
	}
}

func TestNotePathOf(t *testing.T) {
	cases := map[string]string{
		"a.enml":        "a.enml",
		"d/a.enml.yaml": "d/a.enml",
	}
	for in, want := range cases {
		got, ok := NotePathOf(in)
		if !ok || got != want {
			t.Errorf("NotePathOf(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"attachments/abc", "x.yaml", "a.md"} {
		if _, ok := NotePathOf(in); ok {
			t.Errorf("NotePathOf(%q) should fail", in)
		}
	}
}
