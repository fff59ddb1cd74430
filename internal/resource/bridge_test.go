package resource

import (
	"testing"

	"github.com/starford/noteml/internal/models"
)

func TestURLsByID(t *testing.T) {
	r1 := res("id-1", "image/png", "one")
	r2 := res("id-2", "image/png", "two")
	n := note("", r1, r2)

	got := URLsByID(n, map[string]string{"id-1": "/a/1", "missing": "/a/x"})
	if len(got) != 1 || got[r1.Hash()] != "/a/1" {
		t.Errorf("URLsByID = %v", got)
	}
}

func TestReplacementsByID(t *testing.T) {
	r1 := res("old", "image/png", "one")
	r2 := res("new", "image/png", "two")
	n := note("", r1, r2)

	got := ReplacementsByID(n, map[string]string{"old": "new", "new": "ghost", "ghost": "old"})
	if len(got) != 1 || got[r1.Hash()] != r2 {
		t.Errorf("ReplacementsByID = %v", got)
	}
}

func TestReplacementsByResource(t *testing.T) {
	r1 := res("", "image/png", "one")
	r2 := res("", "image/png", "two")
	got := ReplacementsByResource(map[*models.Resource]*models.Resource{r1: r2, r2: nil})
	if len(got) != 1 || got[r1.Hash()] != r2 {
		t.Errorf("ReplacementsByResource = %v", got)
	}
}

func TestHashesByID(t *testing.T) {
	r1 := res("a", "image/png", "one")
	n := note("", r1)
	got := HashesByID(n, []string{"a", "b"})
	if len(got) != 1 || !got.Has(r1.Hash()) {
		t.Errorf("HashesByID = %v", got)
	}
}

func TestHash(t *testing.T) {
	if Hash([]byte("abc")) != "900150983cd24fb0d6963f7d28e17f72" {
		t.Error("Hash is not the hex MD5 of the payload")
	}
}
